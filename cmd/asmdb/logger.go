package main

import "go.uber.org/zap"

// zapLogger logs statements of the database with zap.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Debug(args ...interface{}) {
	l.s.Debug(args...)
}

func (l zapLogger) Info(args ...interface{}) {
	l.s.Info(args...)
}

func (l zapLogger) Warning(args ...interface{}) {
	l.s.Warn(args...)
}

func (l zapLogger) Error(args ...interface{}) {
	l.s.Error(args...)
}

func (l zapLogger) Fatal(args ...interface{}) {
	l.s.Fatal(args...)
}
