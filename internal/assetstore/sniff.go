package assetstore

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

// Kind 区分资源类别：图片存放在媒体根目录，文档存放在文件根目录。
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

type signature struct {
	mime  string
	match func(data []byte) bool
}

var (
	pngSignature  = []byte("\x89PNG\r\n\x1a\n")
	jpegSignature = []byte{0xFF, 0xD8, 0xFF}
)

func hasPrefix(prefix []byte) func([]byte) bool {
	return func(data []byte) bool { return bytes.HasPrefix(data, prefix) }
}

func isGIF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP"))
}

// imageSignatures maps an allowed image extension to the magic number it must carry.
var imageSignatures = map[string]signature{
	".png":  {mime: "image/png", match: hasPrefix(pngSignature)},
	".jpg":  {mime: "image/jpeg", match: hasPrefix(jpegSignature)},
	".jpeg": {mime: "image/jpeg", match: hasPrefix(jpegSignature)},
	".gif":  {mime: "image/gif", match: isGIF},
	".webp": {mime: "image/webp", match: isWebP},
}

// documentTypes 列出文档扩展名可接受的 MIME（含父类型，例如 docx 的 zip）。
var documentTypes = map[string][]string{
	".pdf":  {"application/pdf"},
	".doc":  {"application/msword", "application/x-ole-storage"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
	".xls":  {"application/vnd.ms-excel", "application/x-ole-storage"},
	".xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/zip"},
	".ppt":  {"application/vnd.ms-powerpoint", "application/x-ole-storage"},
	".pptx": {"application/vnd.openxmlformats-officedocument.presentationml.presentation", "application/zip"},
	".odt":  {"application/vnd.oasis.opendocument.text", "application/zip"},
	".rtf":  {"text/rtf", "application/rtf"},
	".txt":  {"text/plain"},
	".csv":  {"text/csv", "text/plain"},
	".md":   {"text/plain"},
}

// deniedExtensions are rejected for every kind before any sniffing.
var deniedExtensions = map[string]struct{}{
	".exe": {}, ".dll": {}, ".so": {}, ".sh": {}, ".bat": {}, ".cmd": {}, ".ps1": {},
	".js": {}, ".mjs": {}, ".php": {}, ".html": {}, ".htm": {}, ".svg": {}, ".jar": {}, ".msi": {},
}

// deniedMIMEs are rejected whenever the sniffed type (or any parent) matches.
var deniedMIMEs = []string{
	"application/x-executable",
	"application/x-elf",
	"application/x-sharedlib",
	"application/x-mach-binary",
	"application/vnd.microsoft.portable-executable",
	"application/x-msi",
	"application/java-archive",
	"text/x-shellscript",
	"text/html",
	"text/javascript",
	"application/javascript",
	"text/x-php",
	"image/svg+xml",
}

// sniffResult 为内容校验通过后的探测结果。
type sniffResult struct {
	mime   string
	width  int
	height int
}

// sniff checks data against the policy of kind for the (lower-case) extension ext.
// mimeHint, when present and specific, must agree with the detected type.
func sniff(kind Kind, ext string, data []byte, mimeHint string) (sniffResult, error) {
	if len(data) == 0 {
		return sniffResult{}, ErrInvalidFileKind
	}
	if _, denied := deniedExtensions[ext]; denied {
		return sniffResult{}, ErrInvalidFileKind
	}

	detected := mimetype.Detect(data)
	if matchesAny(detected, deniedMIMEs) {
		return sniffResult{}, ErrInvalidFileKind
	}

	switch kind {
	case KindImage:
		return sniffImage(ext, data, mimeHint)
	case KindDocument:
		return sniffDocument(ext, detected, mimeHint)
	default:
		return sniffResult{}, ErrInvalidFileKind
	}
}

func sniffImage(ext string, data []byte, mimeHint string) (sniffResult, error) {
	sig, ok := imageSignatures[ext]
	if !ok || !sig.match(data) {
		return sniffResult{}, ErrInvalidFileKind
	}
	if !hintAgrees(mimeHint, sig.mime) {
		return sniffResult{}, ErrInvalidFileKind
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return sniffResult{}, ErrInvalidFileKind
	}
	return sniffResult{mime: sig.mime, width: cfg.Width, height: cfg.Height}, nil
}

func sniffDocument(ext string, detected *mimetype.MIME, mimeHint string) (sniffResult, error) {
	accepted, ok := documentTypes[ext]
	if !ok {
		return sniffResult{}, ErrInvalidFileKind
	}
	if !matchesAny(detected, accepted) {
		return sniffResult{}, ErrInvalidFileKind
	}
	if hint := normalizeHint(mimeHint); hint != "" && strings.HasPrefix(hint, "image/") {
		return sniffResult{}, ErrInvalidFileKind
	}
	return sniffResult{mime: detected.String()}, nil
}

// matchesAny walks the detected MIME and its parents.
func matchesAny(detected *mimetype.MIME, candidates []string) bool {
	for m := detected; m != nil; m = m.Parent() {
		for _, candidate := range candidates {
			if m.Is(candidate) {
				return true
			}
		}
	}
	return false
}

func normalizeHint(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if idx := strings.Index(hint, ";"); idx >= 0 {
		hint = strings.TrimSpace(hint[:idx])
	}
	if hint == "image/jpg" || hint == "image/pjpeg" {
		hint = "image/jpeg"
	}
	return hint
}

// hintAgrees 忽略缺失或泛化的 MIME 提示（如 application/octet-stream）。
func hintAgrees(hint, expected string) bool {
	hint = normalizeHint(hint)
	if hint == "" || hint == "application/octet-stream" {
		return true
	}
	return hint == expected
}
