// Package logx is the project's structured logging facade over zerolog.
//
// Loggers handed out by a Service stay live across Service.Apply calls, so
// components can keep the Logger they were constructed with while levels and
// sinks change underneath them.
package logx
