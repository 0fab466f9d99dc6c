// Command blendthumb is a CLI utility for inspecting blend files and
// extracting their embedded previews.
//
// Usage:
//
//	blendthumb <command> [arguments]
//
// Commands:
//
//	info     Parse one or more blend files and print their version,
//	         compression state, and preview dimensions. Only the file
//	         header and the thumbnail block are read, so this is fast
//	         even on multi-gigabyte files.
//
//	extract  Write the embedded preview of a blend file to a PNG. The
//	         output path defaults to the source name with a .png
//	         extension.
//
// Gzip-compressed blend files are reported as such; their previews are
// not reachable without a full decompression pass, which this tool does
// not attempt.
package main
