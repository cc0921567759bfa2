package app

import (
	"fmt"
	"strings"
	"time"

	ferrors "github.com/shiroemons/go-freearc/internal/freearc/errors"
	"github.com/shiroemons/go-freearc/internal/freearc/models"
	"github.com/shiroemons/go-freearc/pkg/freearc"
)

const timeLayout = "2006-01-02 15:04:05"

// FormatEntries は一覧を表形式の文字列にします
func FormatEntries(entries []models.Entry) string {
	var builder strings.Builder
	builder.WriteString("更新日時                  サイズ  CRC32     方式         パス\n")

	var files int
	var total uint64
	for _, e := range entries {
		stamp := strings.Repeat(" ", len(timeLayout))
		if !e.ModTime.IsZero() {
			stamp = e.ModTime.Local().Format(timeLayout)
		}
		if e.IsDir {
			fmt.Fprintf(&builder, "%s  %12s  %8s  %-11s  %s/\n", stamp, "<DIR>", "", "", e.Path)
			continue
		}
		files++
		total += e.Size
		fmt.Fprintf(&builder, "%s  %12d  %08x  %-11s  %s\n", stamp, e.Size, e.CRC, e.Method, e.Path)
	}
	fmt.Fprintf(&builder, "%dファイル、%dバイト\n", files, total)
	return builder.String()
}

// FormatInfo はアーカイブの概要を文字列にします
func FormatInfo(path string, info freearc.Info) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "アーカイブ: %s\n", path)
	fmt.Fprintf(&builder, "サイズ:     %dバイト\n", info.Size)
	fmt.Fprintf(&builder, "ブロック:   %d\n", info.Blocks)
	fmt.Fprintf(&builder, "ファイル:   %d (ディレクトリ %d)\n", info.Files, info.Dirs)
	fmt.Fprintf(&builder, "元サイズ:   %dバイト\n", info.OrigSize)
	fmt.Fprintf(&builder, "圧縮後:     %dバイト", info.CompSize)
	if info.OrigSize > 0 {
		fmt.Fprintf(&builder, " (%.1f%%)", float64(info.CompSize)*100/float64(info.OrigSize))
	}
	builder.WriteString("\n")
	fmt.Fprintf(&builder, "方式:       %s\n", strings.Join(info.Methods, ", "))
	fmt.Fprintf(&builder, "暗号化:     %s\n", yesNo(info.Encrypted))
	fmt.Fprintf(&builder, "ロック:     %s\n", yesNo(info.Locked))
	if info.Comment != "" {
		fmt.Fprintf(&builder, "コメント:\n%s\n", info.Comment)
	}
	return builder.String()
}

func yesNo(b bool) string {
	if b {
		return "あり"
	}
	return "なし"
}

// FormatSummary は集計結果を文字列にします。失敗はエラー分類に応じた説明付きで並べます。
func FormatSummary(op string, sum *models.Summary) string {
	var builder strings.Builder
	for _, r := range sum.Failed {
		name := r.Path
		if name == "" {
			name = fmt.Sprintf("(ブロック%d)", r.Block)
		}
		fmt.Fprintf(&builder, "失敗: %s: %s\n", name, ferrors.Describe(r.Err, sum.Encrypted))
	}
	for _, name := range sum.NotFound {
		fmt.Fprintf(&builder, "見つかりません: %s\n", name)
	}
	fmt.Fprintf(&builder, "%s: %dファイル、%dバイト", op, sum.Files, sum.Bytes)
	if sum.Dirs > 0 {
		fmt.Fprintf(&builder, "、ディレクトリ%d", sum.Dirs)
	}
	if sum.Skipped > 0 {
		fmt.Fprintf(&builder, "、スキップ%d", sum.Skipped)
	}
	if len(sum.Failed) > 0 {
		fmt.Fprintf(&builder, "、失敗%d", len(sum.Failed))
	}
	fmt.Fprintf(&builder, " (%s)\n", sum.Elapsed.Round(time.Millisecond))
	return builder.String()
}
