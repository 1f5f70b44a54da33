package services

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/vnkhanh/companion-tutor-backend/models"
)

const (
	MaxPDFSize         = 1 << 20 // 1 MiB
	MaxPDFContentRunes = 20000
	TruncationMarker   = "\n\n[Content truncated...]"
	minReadableChars   = 10
	maxInflatedStream  = 8 << 20
)

// ObjectStorage là phần Supabase Storage mà services cần
type ObjectStorage interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
	Remove(ctx context.Context, objectPath string) error
}

var (
	streamRe = regexp.MustCompile(`(?s)stream\r?\n(.*?)\r?\nendstream`)
	btEtRe   = regexp.MustCompile(`(?s)\bBT\b(.*?)\bET\b`)
	opNoise  = regexp.MustCompile(`\b(BT|ET|Tj|TJ|Tf|Td|TD|Tm|T\*)\b|-?\d+(\.\d+)?`)
)

// ValidatePDF chỉ nhận application/pdf, dung lượng trong khoảng (0, 1 MiB]
func ValidatePDF(contentType string, size int64) error {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if mediaType != "application/pdf" {
		return NewValidationError("file", "only PDF files are allowed")
	}
	if size <= 0 {
		return NewValidationError("file", "file is empty")
	}
	if size > MaxPDFSize {
		return NewValidationError("file", fmt.Sprintf("file size must be less than 1MB (got %dKB)", size/1024))
	}
	return nil
}

// ExtractText thử thư viện PDF trước, nếu lỗi hoặc quá ít chữ thì quét thô các stream
func ExtractText(data []byte) (string, error) {
	if text, err := extractWithLibrary(data); err == nil {
		if cleaned := CleanExtractedText(text); readable(cleaned) {
			pdfExtractions.WithLabelValues("library", "ok").Inc()
			return normalizeWhitespace(cleaned), nil
		}
	}

	text := extractFallback(data)
	if !readable(text) {
		pdfExtractions.WithLabelValues("fallback", "unreadable").Inc()
		return "", ErrNoReadableText
	}
	pdfExtractions.WithLabelValues("fallback", "ok").Inc()
	return normalizeWhitespace(text), nil
}

func extractWithLibrary(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func extractFallback(data []byte) string {
	var sb strings.Builder
	var streams [][]byte
	for _, m := range streamRe.FindAllSubmatch(data, -1) {
		content := inflate(m[1])
		streams = append(streams, content)
		for _, s := range literalStrings(content) {
			sb.WriteString(s)
			sb.WriteByte(' ')
		}
	}
	if readable(sb.String()) {
		return sb.String()
	}

	// không có chuỗi trong stream: thử các khối BT…ET trên toàn bộ file
	sb.Reset()
	sources := append([][]byte{data}, streams...)
	for _, src := range sources {
		for _, m := range btEtRe.FindAllSubmatch(src, -1) {
			block := m[1]
			if lits := literalStrings(block); len(lits) > 0 {
				sb.WriteString(strings.Join(lits, " "))
			} else {
				sb.WriteString(strings.Trim(opNoise.ReplaceAllString(string(block), " "), " []"))
			}
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

func inflate(raw []byte) []byte {
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return raw
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxInflatedStream))
	if err != nil && len(out) == 0 {
		return raw
	}
	return out
}

// literalStrings đọc các chuỗi (...) của PDF, hỗ trợ ngoặc lồng và escape
func literalStrings(b []byte) []string {
	var out []string
	for i := 0; i < len(b); i++ {
		if b[i] != '(' {
			continue
		}
		var buf []byte
		depth := 1
		j := i + 1
		for ; j < len(b) && depth > 0; j++ {
			c := b[j]
			switch c {
			case '\\':
				if j+1 >= len(b) {
					continue
				}
				j++
				switch e := b[j]; e {
				case 'n':
					buf = append(buf, '\n')
				case 'r':
					buf = append(buf, '\r')
				case 't':
					buf = append(buf, '\t')
				case 'b':
					buf = append(buf, '\b')
				case 'f':
					buf = append(buf, '\f')
				case '(', ')', '\\':
					buf = append(buf, e)
				case '\r', '\n':
					if e == '\r' && j+1 < len(b) && b[j+1] == '\n' {
						j++
					}
				default:
					if e >= '0' && e <= '7' {
						v := int(e - '0')
						for k := 0; k < 2 && j+1 < len(b) && b[j+1] >= '0' && b[j+1] <= '7'; k++ {
							j++
							v = v*8 + int(b[j]-'0')
						}
						buf = append(buf, byte(v))
					} else {
						buf = append(buf, e)
					}
				}
			case '(':
				depth++
				buf = append(buf, c)
			case ')':
				depth--
				if depth > 0 {
					buf = append(buf, c)
				}
			default:
				buf = append(buf, c)
			}
		}
		if s := printable(buf); strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
		i = j - 1
	}
	return out
}

// printable bỏ byte điều khiển và byte không phải UTF-8
func printable(b []byte) string {
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		switch {
		case r == utf8.RuneError && size == 1:
			continue
		case r == '\n' || r == '\r' || r == '\t':
			sb.WriteByte(' ')
		case r < 0x20 || r == 0x7f:
			continue
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func readable(s string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= minReadableChars
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateContent giới hạn nội dung lưu vào companion theo số ký tự
func TruncateContent(text string) string {
	if utf8.RuneCountInString(text) <= MaxPDFContentRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxPDFContentRunes]) + TruncationMarker
}

// PDFObjectPath: pdfs/<user>/<unix-millis>-<slug>.pdf
func PDFObjectPath(userID, fileName string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	name := slug.Make(base)
	if name == "" {
		name = "document"
	}
	return fmt.Sprintf("pdfs/%s/%d-%s.pdf", userID, now.UnixMilli(), name)
}

type PDFService struct {
	storage    ObjectStorage
	companions *CompanionService
	log        *zap.Logger
	now        func() time.Time
}

func NewPDFService(storage ObjectStorage, companions *CompanionService, log *zap.Logger) *PDFService {
	return &PDFService{storage: storage, companions: companions, log: log, now: time.Now}
}

type PDFUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Extract kiểm tra file rồi trả về văn bản đã chuẩn hoá, không lưu gì
func (s *PDFService) Extract(upload PDFUpload) (string, error) {
	if err := ValidatePDF(upload.ContentType, int64(len(upload.Data))); err != nil {
		return "", err
	}
	return ExtractText(upload.Data)
}

// Ingest kiểm tra, trích xuất, tải lên storage và gắn PDF vào companion
func (s *PDFService) Ingest(ctx context.Context, userID string, companionID uuid.UUID, upload PDFUpload) (*models.Companion, error) {
	text, err := s.Extract(upload)
	if err != nil {
		return nil, err
	}
	// kiểm tra quyền trước khi upload để không để lại object mồ côi
	if _, err := s.companions.Get(ctx, companionID, userID); err != nil {
		return nil, err
	}
	return s.Persist(ctx, userID, companionID, upload.FileName, upload.Data, text)
}

// Persist upload bytes, cắt nội dung và cập nhật companion; lỗi sau upload thì xoá object
func (s *PDFService) Persist(ctx context.Context, userID string, companionID uuid.UUID, fileName string, data []byte, text string) (*models.Companion, error) {
	objectPath := PDFObjectPath(userID, fileName, s.now())
	publicURL, err := s.storage.Upload(ctx, objectPath, data, "application/pdf")
	if err != nil {
		return nil, &ProviderError{Provider: "supabase", Message: "upload pdf failed", Err: err}
	}

	companion, err := s.companions.AttachPDF(ctx, companionID, userID, PDFAttachment{
		URL:     publicURL,
		Name:    filepath.Base(fileName),
		Content: TruncateContent(text),
	})
	if err != nil {
		// dùng context riêng vì request có thể đã bị huỷ
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if rerr := s.storage.Remove(cleanupCtx, objectPath); rerr != nil {
			s.log.Error("remove orphaned pdf failed", zap.String("object", objectPath), zap.Error(rerr))
		}
		return nil, err
	}

	s.log.Info("pdf attached",
		zap.String("companion_id", companionID.String()),
		zap.String("object", objectPath),
		zap.Int("chars", utf8.RuneCountInString(text)),
	)
	return companion, nil
}
