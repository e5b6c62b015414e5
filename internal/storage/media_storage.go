package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
)

// URLPrefix - префикс, под которым файлы раздаются статикой.
const URLPrefix = "/uploads/"

// sniffLen - сколько байт нужно filetype для определения типа.
const sniffLen = 262

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"video/mp4":  true,
}

var (
	ErrUnsupportedMedia = apperror.Validation("Unsupported media type. Allowed: jpg, jpeg, png, webp, mp4")
	ErrEmptyFile        = apperror.Validation("Uploaded file is empty")
	ErrInvalidRef       = errors.New("storage: некорректная ссылка на файл")
)

// StoredFile - файл в хранилище.
type StoredFile struct {
	Ref     string
	ModTime time.Time
}

// MediaStorage хранит фото и видео обращений на локальном диске.
type MediaStorage struct {
	rootPath       string
	maxUploadBytes int64
}

// NewMediaStorage создаёт файловое хранилище.
func NewMediaStorage(rootPath string, maxUploadMB int64) (*MediaStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &MediaStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Save проверяет реальный тип файла и сохраняет его под случайным именем.
// Возвращает ссылку вида /uploads/<uuid>.<ext> и размер.
func (s *MediaStorage) Save(ctx context.Context, originalName string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", 0, fmt.Errorf("storage: не удалось прочитать файл: %w", err)
	}
	if n == 0 {
		return "", 0, ErrEmptyFile
	}
	header = header[:n]

	ext, err := detectExtension(originalName, header)
	if err != nil {
		return "", 0, err
	}

	fileName := uuid.NewString() + ext
	targetPath := filepath.Join(s.rootPath, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", 0, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	limited := io.LimitedReader{R: io.MultiReader(bytes.NewReader(header), r), N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, &limited)
	if err != nil {
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}

	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return "", 0, apperror.Validation(fmt.Sprintf("File exceeds the %d MB limit", s.maxUploadBytes/(1024*1024)))
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return URLPrefix + fileName, written, nil
}

// Delete удаляет файл по ссылке. Отсутствующий файл не считается ошибкой.
func (s *MediaStorage) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name, err := fileNameFromRef(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.rootPath, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

// List возвращает все сохранённые файлы (временные .tmp пропускаются).
func (s *MediaStorage) List(ctx context.Context) ([]StoredFile, error) {
	entries, err := os.ReadDir(s.rootPath)
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось прочитать каталог: %w", err)
	}

	files := make([]StoredFile, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, StoredFile{Ref: URLPrefix + entry.Name(), ModTime: info.ModTime()})
	}
	return files, nil
}

// detectExtension определяет тип по магическим байтам и сверяет его с расширением.
func detectExtension(originalName string, header []byte) (string, error) {
	kind, err := filetype.Match(header)
	if err != nil || kind == filetype.Unknown || !allowedMIME[kind.MIME.Value] {
		return "", ErrUnsupportedMedia
	}

	expected := "." + kind.Extension
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if ext != "" && ext != expected {
		return "", apperror.Validation(fmt.Sprintf("File extension %s does not match its content (%s)", ext, expected))
	}
	return expected, nil
}

// fileNameFromRef извлекает имя файла из /uploads/<имя> без выхода за пределы каталога.
func fileNameFromRef(ref string) (string, error) {
	if !strings.HasPrefix(ref, URLPrefix) {
		return "", ErrInvalidRef
	}
	name := strings.TrimPrefix(ref, URLPrefix)
	if name == "" || name != path.Base(name) || name == "." || name == ".." || strings.ContainsRune(name, '\\') {
		return "", ErrInvalidRef
	}
	return name, nil
}
