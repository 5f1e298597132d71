package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Transport serves s3://bucket/key mirrors. The AWS client is created on
// first use so runs without S3 mirrors never load AWS configuration.
type S3Transport struct {
	profile string

	once       sync.Once
	downloader *manager.Downloader
	initErr    error
}

func NewS3Transport(profile string) *S3Transport {
	return &S3Transport{profile: profile}
}

func (t *S3Transport) init(ctx context.Context) {
	opts := []func(*config.LoadOptions) error{}
	if t.profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(t.profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		t.initErr = fmt.Errorf("error loading AWS config: %w", err)
		return
	}
	t.downloader = manager.NewDownloader(s3.NewFromConfig(cfg))
	log.Debug().Str("op", "fetcher/s3").Msgf("S3 client ready (profile %q)", t.profile)
}

func (t *S3Transport) Fetch(ctx context.Context, mirror *url.URL, dst Destination) error {
	bucket, key, err := parseS3URL(mirror)
	if err != nil {
		return err
	}
	t.once.Do(func() { t.init(ctx) })
	if t.initErr != nil {
		return t.initErr
	}
	_, err = t.downloader.Download(ctx, dst, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("error getting object: %w", err)
	}
	return nil
}

func parseS3URL(u *url.URL) (string, string, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 URL format: %s", u.String())
	}
	return bucket, key, nil
}
