// Package models はfreearcコマンドで使用するデータモデルを定義します
package models

import "time"

// FileResult はファイル1つ分の展開結果を表します
type FileResult struct {
	Path  string // アーカイブ内のパス
	Out   string // 書き出し先 (ドライランでは空)
	Block int
	Size  uint64
	IsDir bool
	// Skipped は既存ファイルを上書きしなかったことを表します
	Skipped bool
	Err     error
}

// Summary は展開や検証の集計です
type Summary struct {
	Blocks    int
	Files     int
	Dirs      int
	Bytes     uint64
	Skipped   int
	Failed    []FileResult
	NotFound  []string
	Encrypted bool
	Elapsed   time.Duration
}

// OK は失敗も見つからない指定もない場合に true を返します
func (s *Summary) OK() bool {
	return len(s.Failed) == 0 && len(s.NotFound) == 0
}

// Add は結果1件を集計に加えます
func (s *Summary) Add(r FileResult) {
	switch {
	case r.Err != nil:
		s.Failed = append(s.Failed, r)
	case r.Skipped:
		s.Skipped++
	case r.IsDir:
		s.Dirs++
	default:
		s.Files++
		s.Bytes += r.Size
	}
}

// Entry は一覧表示用のファイル情報です
type Entry struct {
	Path    string
	Size    uint64
	ModTime time.Time
	IsDir   bool
	CRC     uint32
	Block   int
	Method  string
}
