package ctxkey

type ctxKey int

// 認証ミドルウェアがリクエストコンテキストに設定するキー
const (
	// UserID 認証済みユーザーのUUID
	UserID ctxKey = iota
	// UserDisplayName 認証済みユーザーの表示名スナップショット
	UserDisplayName
	// UserIconURL 認証済みユーザーのアイコンURLスナップショット
	UserIconURL
)
