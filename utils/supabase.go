package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

// SupabaseStorage giữ một storage client duy nhất cho bucket chứa PDF
type SupabaseStorage struct {
	client  *storage.Client
	baseURL string
	bucket  string
}

func NewSupabaseStorage(supabaseURL, supabaseKey, bucket string) *SupabaseStorage {
	baseURL := strings.TrimRight(supabaseURL, "/")
	return &SupabaseStorage{
		client:  storage.NewClient(baseURL+"/storage/v1", supabaseKey, nil),
		baseURL: baseURL,
		bucket:  bucket,
	}
}

// Upload đẩy bytes lên bucket và trả về public URL của object
func (s *SupabaseStorage) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	upsert := false
	options := storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}
	if _, err := s.client.UploadFile(s.bucket, objectPath, bytes.NewReader(data), options); err != nil {
		return "", fmt.Errorf("upload %s to bucket %s: %w", objectPath, s.bucket, err)
	}
	return s.PublicURL(objectPath), nil
}

// Remove xoá object theo đường dẫn trong bucket
func (s *SupabaseStorage) Remove(ctx context.Context, objectPath string) error {
	if objectPath == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.RemoveFile(s.bucket, []string{objectPath}); err != nil {
		return fmt.Errorf("remove %s from bucket %s: %w", objectPath, s.bucket, err)
	}
	return nil
}

func (s *SupabaseStorage) PublicURL(objectPath string) string {
	return PublicObjectURL(s.baseURL, s.bucket, objectPath)
}

func PublicObjectURL(baseURL, bucket, objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", strings.TrimRight(baseURL, "/"), bucket, objectPath)
}

// ObjectPathFromURL tách bucket và đường dẫn object từ một public URL của Supabase
func ObjectPathFromURL(publicURL string) (bucket, object string, err error) {
	const marker = "/storage/v1/object/"
	idx := strings.Index(publicURL, marker)
	if idx == -1 {
		return "", "", fmt.Errorf("no object path in url: %s", publicURL)
	}

	rest := strings.TrimPrefix(publicURL[idx+len(marker):], "public/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("cannot parse bucket/object from url: " + publicURL)
	}
	bucket, object = parts[0], parts[1]
	if q := strings.Index(object, "?"); q != -1 {
		object = object[:q]
	}
	if u, err := url.PathUnescape(object); err == nil {
		object = u
	}
	return bucket, object, nil
}
