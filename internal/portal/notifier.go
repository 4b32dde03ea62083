package portal

import "go.uber.org/zap"

// Notifier shows short notices to the user.
type Notifier interface {
	Info(message string)
	Error(message string)
}

// LogNotifier prints notices through the logger; the terminal client uses it.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notice")}
}

func (n *LogNotifier) Info(message string) {
	n.logger.Info(message)
}

func (n *LogNotifier) Error(message string) {
	n.logger.Error(message)
}
