package common

// Shared constants to enforce DRY and avoid magic strings/numbers.

// HTTP headers and content types
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	AuthSchemeBearer    = "Bearer"
	ContentTypeJSON     = "application/json"
)

// API paths
const (
	PathHealth  = "/health"
	PathOCR     = "/api/ocr"
	PathConfig  = "/api/config"
	PathMetrics = "/metrics"
)

// Defaults and limits
const (
	DefaultDPI            = 200
	DefaultTimeoutSeconds = 300
	DefaultMaxFileSizeMB  = 16
	DefaultMaxImageDim    = 1024
	DefaultPrompt         = "OCR this image and extract all text."
	ErrorSnippetLimit     = 400
)

// MIME types
const (
	MimeImagePNG  = "image/png"
	MimeImageJPEG = "image/jpeg"
	MimeImageGIF  = "image/gif"
	MimeImageBMP  = "image/bmp"
	MimeImageWebP = "image/webp"
	MimePDF       = "application/pdf"
)

// Subdirectory names
const (
	UploadsDirName = "uploads"
)

// AllowedExtensions lists the upload extensions the web surface accepts,
// lowercase and dot-free, in display order.
var AllowedExtensions = []string{"png", "jpg", "jpeg", "gif", "bmp", "webp", "pdf"}

// ImageExtensions maps recognized raster image extensions (with leading dot)
// to their mime types.
var ImageExtensions = map[string]string{
	".png":  MimeImagePNG,
	".jpg":  MimeImageJPEG,
	".jpeg": MimeImageJPEG,
	".gif":  MimeImageGIF,
	".bmp":  MimeImageBMP,
	".webp": MimeImageWebP,
}

// PDFExtension is the only multi-page source extension.
const PDFExtension = ".pdf"
