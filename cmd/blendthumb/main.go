package main

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"blend-browser/internal/blendfile"

	"github.com/disintegration/imaging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "info":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: info requires at least one blend file")
			os.Exit(1)
		}
		exitCode := 0
		for _, path := range os.Args[2:] {
			if err := printInfo(os.Stdout, path); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
				exitCode = 1
			}
		}
		os.Exit(exitCode)

	case "extract":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: extract requires a blend file")
			os.Exit(1)
		}
		src := os.Args[2]
		dst := ""
		if len(os.Args) > 3 {
			dst = os.Args[3]
		}
		written, err := extractThumbnail(src, dst)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", written)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("blendthumb - inspect blend files and extract embedded previews")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  blendthumb info <file.blend> [more files...]")
	fmt.Println("  blendthumb extract <file.blend> [output.png]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  info     Print version, compression, and preview details")
	fmt.Println("  extract  Write the embedded preview to a PNG file")
}

// printInfo parses a single blend file and writes a summary to w.
func printInfo(w io.Writer, path string) error {
	info, err := blendfile.ParseQuick(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s\n", info.Path)
	fmt.Fprintf(w, "  Size:       %d bytes\n", info.Size)
	fmt.Fprintf(w, "  Modified:   %s\n", info.ModTime.Format("2006-01-02 15:04:05"))
	if info.Compressed {
		fmt.Fprintf(w, "  Compressed: yes (no readable preview)\n")
		return nil
	}
	fmt.Fprintf(w, "  Version:    %s\n", info.Version)
	if info.Thumbnail != nil {
		fmt.Fprintf(w, "  Preview:    %dx%d\n", info.Thumbnail.Width, info.Thumbnail.Height)
	} else {
		fmt.Fprintf(w, "  Preview:    none\n")
	}
	return nil
}

// extractThumbnail parses src and writes its embedded preview as PNG. An
// empty dst derives the output name from the source name.
func extractThumbnail(src, dst string) (string, error) {
	info, err := blendfile.ParseQuick(src)
	if err != nil {
		return "", err
	}
	if info.Compressed {
		return "", fmt.Errorf("%s is compressed and carries no readable preview", src)
	}
	if info.Thumbnail == nil {
		return "", fmt.Errorf("%s has no embedded preview", src)
	}

	if dst == "" {
		dst = defaultOutputPath(src)
	}

	img := &image.NRGBA{
		Pix:    info.Thumbnail.Pix,
		Stride: info.Thumbnail.Width * 4,
		Rect:   image.Rect(0, 0, info.Thumbnail.Width, info.Thumbnail.Height),
	}

	if err := imaging.Save(img, dst); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return dst, nil
}

// defaultOutputPath swaps the blend extension for .png, keeping the
// directory.
func defaultOutputPath(src string) string {
	base := filepath.Base(src)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".blend") {
		base = base[:len(base)-len(ext)]
	}
	return filepath.Join(filepath.Dir(src), base+".png")
}
