package logging

import (
	"time"

	"go.uber.org/zap"

	"go_styletransfer/core"
)

// TransferFields wraps a transfer record as a single structured field.
//
//	logger.Info("transfer complete", logging.TransferFields(rec))
func TransferFields(rec core.TransferRecord) zap.Field {
	return zap.Object("transfer", rec)
}

// LoadFields describes one model slot load: the two engine return codes
// (0 is success) and how long the load took.
func LoadFields(style string, paramRet, modelRet int, d time.Duration) []zap.Field {
	return []zap.Field{
		zap.String("style", style),
		zap.Int("param_ret", paramRet),
		zap.Int("model_ret", modelRet),
		zap.Duration("duration", d),
	}
}

// RequestField tags entries with the request identifier.
func RequestField(id string) zap.Field {
	return zap.String("request_id", id)
}
