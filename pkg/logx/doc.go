// Package logx configures taskping's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional alert-chat sink (min-level + rate limiting) over a
//     delivery channel adapter
package logx
