package rangeserve

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const defaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogg":  "video/ogg",
	".mov":  "video/quicktime",
}

// ContentTypeFor returns the media type served for a file name.
func ContentTypeFor(name string) string {
	if contentType, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return contentType
	}
	return defaultContentType
}

// A ByteStore is a seekable source of bytes whose size is known before it is read.
//
// A store is owned by a single request and must be closed by it.
type ByteStore interface {
	io.ReadSeeker
	io.Closer

	Name() string
	Size() int64
	ContentType() string
}

// FileStore is a ByteStore backed by a file on disk.
type FileStore struct {
	file *os.File
	name string
	size int64
}

func (f *FileStore) Read(p []byte) (int, error) {
	return f.file.Read(p)
}

func (f *FileStore) Seek(offset int64, whence int) (int64, error) {
	return f.file.Seek(offset, whence)
}

func (f *FileStore) Close() error {
	return f.file.Close()
}

func (f *FileStore) Name() string        { return f.name }
func (f *FileStore) Size() int64         { return f.size }
func (f *FileStore) ContentType() string { return ContentTypeFor(f.name) }

// A Library resolves video names to files below a storage root.
type Library struct {
	root string
}

// NewLibrary returns a library serving files from root.
func NewLibrary(root string) *Library {
	return &Library{root: filepath.Clean(root)}
}

// resolve maps a relative slash name to a path below the root.
// Names escaping the root, as text or through symlinks, are treated as missing.
func (l *Library) resolve(name string) (string, error) {
	local := filepath.FromSlash(name)
	if name == "" || !filepath.IsLocal(local) {
		return "", errors.Wrapf(ErrNotFound, "invalid name %q", name)
	}

	root, err := filepath.EvalSymlinks(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrapf(ErrNotFound, "storage root for %q", name)
		}
		return "", errors.Wrap(err, "failed to resolve storage root")
	}

	path, err := filepath.EvalSymlinks(filepath.Join(root, local))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrapf(ErrNotFound, "resolve %q", name)
		}
		return "", errors.Wrapf(err, "failed to resolve %q", name)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || !filepath.IsLocal(rel) {
		return "", errors.Wrapf(ErrNotFound, "%q points outside the storage root", name)
	}

	return path, nil
}

// Stat returns the size of the named file without opening it for reading.
func (l *Library) Stat(name string) (int64, error) {
	path, err := l.resolve(name)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.Wrapf(ErrNotFound, "stat %q", name)
		}
		return 0, errors.Wrapf(err, "failed to stat %q", name)
	}
	if !info.Mode().IsRegular() {
		return 0, errors.Wrapf(ErrNotFound, "%q is not a regular file", name)
	}

	return info.Size(), nil
}

// Open opens the named file as a ByteStore.
func (l *Library) Open(name string) (*FileStore, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "open %q", name)
		}
		return nil, errors.Wrapf(err, "failed to open %q", name)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "failed to stat %q", name)
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return nil, errors.Wrapf(ErrNotFound, "%q is not a regular file", name)
	}

	return &FileStore{file: file, name: filepath.Base(path), size: info.Size()}, nil
}

// OpenStore is Open behind the ByteStore interface.
func (l *Library) OpenStore(name string) (ByteStore, error) {
	store, err := l.Open(name)
	if err != nil {
		return nil, err
	}
	return store, nil
}
