// Package blendfile parses the binary blend container format far enough to
// extract the embedded preview thumbnail.
//
// A blend file starts with a 12-byte header (7-byte magic, pointer-width
// flag, endianness flag, three version digits) followed by self-describing
// chunks. ParseQuick walks chunks until it finds the thumbnail chunk or the
// end marker, so it touches only a small prefix of most files. Compressed
// (gzip) files are recognized and reported but not decompressed.
package blendfile
