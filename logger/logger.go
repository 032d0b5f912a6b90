package logger

import (
	"os"

	"go.uber.org/zap"
)

var Log *zap.SugaredLogger

func Init() {
	var (
		logger *zap.Logger
		err    error
	)
	if os.Getenv("LOG_MODE") == "dev" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}
