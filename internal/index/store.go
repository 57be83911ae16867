package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/spigell/jobmatch/internal/catalog"
)

const (
	jobsSuffix       = "_jobs.json"
	embeddingsSuffix = "_emb.bin"

	manifestVersion = 1
	matrixMagic     = "JMVX"

	// magic, rows, dim
	matrixHeaderSize = int64(len(matrixMagic) + 8)
)

// Manifest describes a persisted index. It is stored next to the matrix.
type Manifest struct {
	Version     int                 `json:"version"`
	Embedder    string              `json:"embedder"`
	Dimension   int                 `json:"dimension"`
	Fingerprint string              `json:"fingerprint"`
	Records     []catalog.JobRecord `json:"records"`
}

// Store reads and writes the two index artifacts under a base path.
type Store struct {
	base string
}

func NewStore(base string) *Store {
	return &Store{base: base}
}

func (s *Store) JobsPath() string { return s.base + jobsSuffix }

func (s *Store) EmbeddingsPath() string { return s.base + embeddingsSuffix }

// Save writes both artifacts. Each file is replaced atomically.
func (s *Store) Save(m Manifest, vectors [][]float32) error {
	if len(m.Records) != len(vectors) {
		return fmt.Errorf("manifest has %d records but matrix has %d rows", len(m.Records), len(vectors))
	}
	m.Version = manifestVersion

	if dir := filepath.Dir(s.base); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create index directory: %w", err)
		}
	}

	if err := writeAtomic(s.EmbeddingsPath(), func(w io.Writer) error {
		return writeMatrix(w, m.Dimension, vectors)
	}); err != nil {
		return fmt.Errorf("write embeddings: %w", err)
	}

	if err := writeAtomic(s.JobsPath(), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// Load reads both artifacts. ErrIndexNotFound is returned when either is
// absent and ErrIncompatibleIndex when they are unreadable or disagree.
func (s *Store) Load() (Manifest, [][]float32, error) {
	var m Manifest

	data, err := os.ReadFile(s.JobsPath())
	if err != nil {
		return m, nil, notFoundOr(err, s.JobsPath())
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, nil, fmt.Errorf("%w: decode %s: %v", ErrIncompatibleIndex, s.JobsPath(), err)
	}
	if m.Version != manifestVersion {
		return m, nil, fmt.Errorf("%w: manifest version %d", ErrIncompatibleIndex, m.Version)
	}

	f, err := os.Open(s.EmbeddingsPath())
	if err != nil {
		return m, nil, notFoundOr(err, s.EmbeddingsPath())
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return m, nil, fmt.Errorf("stat %s: %w", s.EmbeddingsPath(), err)
	}

	dim, vectors, err := readMatrix(bufio.NewReader(f), info.Size())
	if err != nil {
		return m, nil, fmt.Errorf("%w: read %s: %v", ErrIncompatibleIndex, s.EmbeddingsPath(), err)
	}
	if dim != m.Dimension || len(vectors) != len(m.Records) {
		return m, nil, fmt.Errorf("%w: manifest describes %dx%d, matrix is %dx%d",
			ErrIncompatibleIndex, len(m.Records), m.Dimension, len(vectors), dim)
	}

	return m, vectors, nil
}

// Exists reports whether both artifacts are present.
func (s *Store) Exists() bool {
	for _, p := range []string{s.JobsPath(), s.EmbeddingsPath()} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

func notFoundOr(err error, path string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, path)
	}
	return fmt.Errorf("open %s: %w", path, err)
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// Matrix layout: magic, uint32 rows, uint32 dim, then rows*dim float32, all little-endian.
func writeMatrix(w io.Writer, dim int, vectors [][]float32) error {
	if _, err := io.WriteString(w, matrixMagic); err != nil {
		return err
	}
	header := []uint32{uint32(len(vectors)), uint32(dim)}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}

	buf := make([]byte, 4*dim)
	for i, vec := range vectors {
		if len(vec) != dim {
			return fmt.Errorf("row %d has %d components, expected %d", i, len(vec), dim)
		}
		for j, v := range vec {
			binary.LittleEndian.PutUint32(buf[4*j:], math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// readMatrix decodes a matrix of size bytes. The header must describe exactly
// the payload that follows it.
func readMatrix(r io.Reader, size int64) (int, [][]float32, error) {
	magic := make([]byte, len(matrixMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return 0, nil, err
	}
	if string(magic) != matrixMagic {
		return 0, nil, errors.New("not an embeddings file")
	}

	var header [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return 0, nil, err
	}
	rows, dim := int(header[0]), int(header[1])

	payload := uint64(header[0]) * uint64(header[1]) * 4
	if size < matrixHeaderSize || payload != uint64(size-matrixHeaderSize) {
		return 0, nil, fmt.Errorf("header describes %dx%d, file holds %d bytes", rows, dim, size)
	}

	buf := make([]byte, 4*dim)
	vectors := make([][]float32, rows)
	for i := range vectors {
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, nil, fmt.Errorf("row %d: %w", i, err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
		}
		vectors[i] = vec
	}

	return dim, vectors, nil
}
