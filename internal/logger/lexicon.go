package logger

import l10n "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Milestones
		"File added to ImageFiles":                       "ImageFiles にファイルを追加しました",
		"Stitch completed":                               "スティッチが完了しました",
		"Output written; Stitchy completed successfully": "出力を書き込みました。Stitchy は正常に完了しました",

		// Pipeline
		"Resolving %d inputs":                                    "%d 個の入力を解決中",
		"Added %s (%s, %dx%d, %d bytes)":                         "%s を追加しました (%s, %dx%d, %d バイト)",
		"Layout: %dx%d canvas, %d rows x %d columns, scale %.3f": "レイアウト: %dx%d キャンバス, %d 行 x %d 列, 倍率 %.3f",
		"Output format: %s":                                      "出力形式: %s",
		"Compositing %d images":                                  "%d 枚の画像を合成中",
		"Painted %s into %v":                                     "%s を %v に描画しました",
		"Image %d is too small to appear at this scale":          "画像 %d はこの倍率では小さすぎて表示されません",
		"Wrote %d bytes to %s":                                   "%d バイトを %s に書き込みました",
		"Logging failed: %v":                                     "ログの書き込みに失敗しました: %v",
		"Using config file: %s":                                  "設定ファイルを使用: %s",
	})
}
