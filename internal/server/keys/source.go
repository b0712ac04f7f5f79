package keys

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

const DefaultKeyBits = 2048

var (
	ErrNoPEMBlock  = errors.New("no PEM block found")
	ErrNotRSAKey   = errors.New("key is not an RSA private key")
	ErrKeyTooSmall = errors.New("RSA key must be at least 2048 bits")
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	// getObject is a seam for tests.
	getObject = func(ctx context.Context, cfg aws.Config, endpoint string, in *s3.GetObjectInput) (io.ReadCloser, error) {
		client := s3.NewFromConfig(cfg, func(o *s3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		})
		out, err := client.GetObject(ctx, in)
		if err != nil {
			return nil, err
		}
		return out.Body, nil
	}

	generateKey = func(bits int) (*rsa.PrivateKey, error) {
		return rsa.GenerateKey(rand.Reader, bits)
	}
)

// S3Location points at a PEM object in an S3-compatible store.
type S3Location struct {
	Endpoint  string
	Region    string
	Bucket    string
	Key       string
	AccessKey string
	SecretKey string
}

func (l S3Location) configured() bool {
	return l.Bucket != "" && l.Key != ""
}

// SourceConfig lists the places a private key may come from. Load tries
// them in field order.
type SourceConfig struct {
	PEM  string
	Path string
	S3   S3Location
	// Generate allows an ephemeral key when nothing else is configured; with
	// Path set the generated key is written there.
	Generate bool
	Bits     int
}

// Source loads the server's RSA private key.
type Source struct {
	cfg    SourceConfig
	logger logging.Logger
}

func NewSource(cfg SourceConfig, logger logging.Logger) *Source {
	if cfg.Bits == 0 {
		cfg.Bits = DefaultKeyBits
	}
	return &Source{cfg: cfg, logger: logger.With("module", "keys")}
}

// Path is the key file the source reads, if any.
func (s *Source) Path() string {
	return s.cfg.Path
}

// Load returns the configured key.
func (s *Source) Load(ctx context.Context) (*rsa.PrivateKey, error) {
	switch {
	case strings.TrimSpace(s.cfg.PEM) != "":
		s.logger.Info(ctx, "loading signing key from inline PEM")
		return ParsePrivateKeyPEM([]byte(s.cfg.PEM))

	case s.cfg.Path != "":
		key, err := LoadFile(s.cfg.Path)
		if err == nil {
			s.logger.Info(ctx, "loaded signing key", "path", s.cfg.Path)
			return key, nil
		}
		if !errors.Is(err, fs.ErrNotExist) || !s.cfg.Generate {
			return nil, err
		}
		key, err = generateKey(s.cfg.Bits)
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		if err := WriteFile(s.cfg.Path, key); err != nil {
			return nil, err
		}
		s.logger.Warn(ctx, "generated new signing key", "path", s.cfg.Path)
		return key, nil

	case s.cfg.S3.configured():
		return s.loadS3(ctx)

	case s.cfg.Generate:
		s.logger.Warn(ctx, "no signing key configured, generating an ephemeral one")
		return generateKey(s.cfg.Bits)
	}
	return nil, ErrNoKey
}

// Generate returns a fresh key of the configured size, persisting it to Path
// when one is set.
func (s *Source) Generate(ctx context.Context) (*rsa.PrivateKey, error) {
	key, err := generateKey(s.cfg.Bits)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if s.cfg.Path != "" {
		if err := WriteFile(s.cfg.Path, key); err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "wrote new signing key", "path", s.cfg.Path)
	}
	return key, nil
}

func (s *Source) loadS3(ctx context.Context) (*rsa.PrivateKey, error) {
	loc := s.cfg.S3
	opts := []func(*config.LoadOptions) error{config.WithRegion(loc.Region)}
	if loc.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(loc.AccessKey, loc.SecretKey, "")))
	}
	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	body, err := getObject(ctx, cfg, loc.Endpoint, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s/%s: %w", loc.Bucket, loc.Key, err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("s3 read: %w", err)
	}
	s.logger.Info(ctx, "loaded signing key from s3", "bucket", loc.Bucket, "key", loc.Key)
	return ParsePrivateKeyPEM(data)
}

// LoadFile reads a PEM encoded private key from path.
func LoadFile(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePrivateKeyPEM(data)
}

// WriteFile stores key at path in PKCS#8 form with owner-only permissions.
// The file is written next to its destination and renamed into place so a
// watcher never sees a partial key.
func WriteFile(path string, key *rsa.PrivateKey) error {
	data, err := EncodePrivateKeyPEM(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".key-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ParsePrivateKeyPEM accepts PKCS#1 ("RSA PRIVATE KEY") and PKCS#8
// ("PRIVATE KEY") blocks.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(bytes.TrimSpace(data))
	if block == nil {
		return nil, ErrNoPEMBlock
	}

	var key *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse pkcs1: %w", err)
		}
		key = k
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse pkcs8: %w", err)
		}
		rk, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, ErrNotRSAKey
		}
		key = rk
	default:
		return nil, fmt.Errorf("%w: unexpected block %q", ErrNotRSAKey, block.Type)
	}

	if key.N.BitLen() < DefaultKeyBits {
		return nil, ErrKeyTooSmall
	}
	return key, nil
}

// EncodePrivateKeyPEM encodes key as a PKCS#8 PEM block.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
