package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/harmony-sds/workflow-core/internal/platform/envutil"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

// gcsStore serves artifact URLs out of object storage. URL schemes are a
// naming convention only; s3:// and gs:// URLs resolve to the same
// bucket/key namespace, and bare /tmp paths land in the default bucket.
type gcsStore struct {
	log           *logger.Logger
	client        *storage.Client
	defaultBucket string
}

func NewGCSStore(ctx context.Context, log *logger.Logger) (Store, error) {
	serviceLog := log.With("service", "ArtifactStore")
	bucket := envutil.GetEnv("ARTIFACT_BUCKET", "harmony-artifacts", log)

	var opts []option.ClientOption
	emulatorHost := strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST"))
	if emulatorHost != "" {
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog.Info("Artifact store initialized",
		"default_bucket", bucket,
		"emulator_host", emulatorHost,
	)
	return &gcsStore{
		log:           serviceLog,
		client:        client,
		defaultBucket: bucket,
	}, nil
}

func (s *gcsStore) resolve(raw string) (bucket, key string, err error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return "", "", err
	}
	bucket = loc.Bucket
	if bucket == "" {
		bucket = s.defaultBucket
	}
	return bucket, loc.Key, nil
}

func (s *gcsStore) Get(ctx context.Context, url string) ([]byte, error) {
	bucket, key, err := s.resolve(url)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("open artifact %q: %w", url, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open artifact %q: %w", url, err)
	}
	defer r.Close()
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read artifact %q: %w", url, err)
	}
	return body, nil
}

func (s *gcsStore) Put(ctx context.Context, url string, body []byte) error {
	bucket, key, err := s.resolve(url)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write artifact %q: %w", url, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close artifact writer %q: %w", url, err)
	}
	return nil
}

func (s *gcsStore) List(ctx context.Context, prefixURL string) ([]string, error) {
	loc, err := ParseLocation(prefixURL)
	if err != nil {
		return nil, err
	}
	bucket := loc.Bucket
	if bucket == "" {
		bucket = s.defaultBucket
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: loc.Key})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list artifacts under %q: %w", prefixURL, err)
		}
		out = append(out, Location{Scheme: loc.Scheme, Bucket: loc.Bucket, Key: attrs.Name}.String())
	}
	return out, nil
}
