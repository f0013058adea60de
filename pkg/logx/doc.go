// Package logx is a thin structured-logging facade over zerolog.
//
// It exists so the rest of the codebase logs through a stable, minimal API
// (leveled methods plus Field helpers) instead of importing zerolog directly.
// The zero Logger value is a safe no-op, which keeps constructors free of
// "is the logger set" checks.
package logx
