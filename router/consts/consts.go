package consts

const (
	// HeaderVersion サーバーバージョンヘッダー
	HeaderVersion = "X-QUARTZ-VERSION"

	// KeyUser 認証済みユーザー
	KeyUser = "user"
	// KeyUserID 認証済みユーザーUUID
	KeyUserID = "userID"
)
