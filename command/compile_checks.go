package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[StartAuthMessage]        = (*StartAuthCommand)(nil)
	_ gocmd.Commander[CompleteCallbackMessage] = (*CompleteCallbackCommand)(nil)
	_ gocmd.Commander[ExchangeTokenMessage]    = (*ExchangeTokenCommand)(nil)
	_ gocmd.Commander[RelayGraphQLMessage]     = (*RelayGraphQLCommand)(nil)
	_ gocmd.Commander[UploadFileMessage]       = (*UploadFileCommand)(nil)
)
