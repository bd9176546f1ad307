package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"framepipe/internal/services"
)

// S3Config holds connection settings for the S3 artifact store.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 uploads frames to a bucket under <prefix>/<job_id>/<file>.
type S3 struct {
	bucket   string
	prefix   string
	uploader uploader
	getter   objectGetter
}

// NewS3 creates an S3 artifact store. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, conf S3Config) (*S3, error) {
	if strings.TrimSpace(conf.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "artifacts", "configure s3", "bucket is required", nil)
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(conf.Region)}
	if conf.AccessKey != "" && conf.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(conf.AccessKey, conf.SecretKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "artifacts", "load s3 config", "", err)
	}
	if conf.Endpoint != "" {
		cfg.BaseEndpoint = aws.String(conf.Endpoint)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = conf.Endpoint != ""
	})
	return newS3WithClients(conf.Bucket, conf.Prefix, manager.NewUploader(client), client), nil
}

func newS3WithClients(bucket, prefix string, up uploader, getter objectGetter) *S3 {
	return &S3{
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		uploader: up,
		getter:   getter,
	}
}

// Key returns the object key for a frame of jobID.
func (s *S3) Key(jobID, localPath string) string {
	return path.Join(s.prefix, jobID, filepath.Base(localPath))
}

// Put uploads the frame and returns its s3:// ref.
func (s *S3) Put(ctx context.Context, jobID, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "artifacts", "open frame", localPath, err)
		}
		return "", services.Wrap(services.ErrTransient, "artifacts", "open frame", localPath, err)
	}
	defer file.Close()

	key := s.Key(jobID, localPath)
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String("image/jpeg"),
	}); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", services.Wrap(services.ErrTransient, "artifacts", "upload frame", key, err)
	}
	return FormatRef(s.bucket, key), nil
}

// Read downloads the object behind an s3 ref. Plain paths are read from disk.
func (s *S3) Read(ctx context.Context, ref string) ([]byte, error) {
	bucket, key, ok := ParseRef(ref)
	if !ok {
		return readLocal(ref)
	}
	result, err := s.getter.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, services.Wrap(services.ErrNotFound, "artifacts", "download frame", ref, err)
		}
		return nil, services.Wrap(services.ErrTransient, "artifacts", "download frame", ref, err)
	}
	defer result.Body.Close()

	body, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "artifacts", "read object body", ref, fmt.Errorf("read body: %w", err))
	}
	return body, nil
}
