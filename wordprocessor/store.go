package wordprocessor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sheltermanager/asmdb"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
)

type (
	// TemplateStore loads document templates by ID.
	TemplateStore interface {
		Template(ctx context.Context, id int64) (Template, error)
	}

	// DatabaseTemplateStore loads templates from the templatedocument
	// table, where Content is base64 encoded.
	DatabaseTemplateStore struct {
		DB *asmdb.Database
	}

	// S3TemplateStore loads template names from the templatedocument table
	// and their content from the object <database>/<id> of the bucket.
	S3TemplateStore struct {
		DB     *asmdb.Database
		Client S3GetObjectAPI
		Bucket string
	}

	// S3GetObjectAPI is the part of *s3.Client S3TemplateStore uses.
	S3GetObjectAPI interface {
		GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	}
)

var (
	_ TemplateStore = DatabaseTemplateStore{}
	_ TemplateStore = (*S3TemplateStore)(nil)
)

func (s DatabaseTemplateStore) Template(ctx context.Context, id int64) (Template, error) {
	rows, err := s.DB.Query("SELECT Name, Content FROM templatedocument WHERE ID = ?", id)
	if err != nil {
		return Template{}, err
	}
	if len(rows) == 0 {
		return Template{}, fmt.Errorf("%w: %d", ErrTemplateNotFound, id)
	}
	content, err := base64.StdEncoding.DecodeString(rows[0].Str("CONTENT"))
	if err != nil {
		return Template{}, fmt.Errorf("decode template %d: %w", id, err)
	}
	return Template{Name: rows[0].Str("NAME"), Content: content}, nil
}

// NewS3TemplateStore creates a store with an S3 client for the config.
// Explicit keys and an endpoint for S3 compatible services are optional.
func NewS3TemplateStore(ctx context.Context, d *asmdb.Database, cfg asmdb.TemplateConfig) (*S3TemplateStore, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, config.WithCredentialsProvider(creds))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	clientOpts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return &S3TemplateStore{
		DB:     d,
		Client: s3.NewFromConfig(awsCfg, clientOpts...),
		Bucket: cfg.Bucket,
	}, nil
}

func (s *S3TemplateStore) Template(ctx context.Context, id int64) (Template, error) {
	name, err := s.DB.QueryString("SELECT Name FROM templatedocument WHERE ID = ?", id)
	if err != nil {
		return Template{}, err
	}
	if name == "" {
		return Template{}, fmt.Errorf("%w: %d", ErrTemplateNotFound, id)
	}
	resp, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.DB.Name() + "/" + strconv.FormatInt(id, 10)),
	})
	if err != nil {
		return Template{}, fmt.Errorf("failed to get S3 object: %w", err)
	}
	defer resp.Body.Close()
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return Template{}, err
	}
	return Template{Name: name, Content: content}, nil
}

// NewTemplateStore returns the store selected by the config.
func NewTemplateStore(ctx context.Context, d *asmdb.Database, cfg asmdb.TemplateConfig) (TemplateStore, error) {
	if cfg.Store == "s3" {
		return NewS3TemplateStore(ctx, d, cfg)
	}
	return DatabaseTemplateStore{DB: d}, nil
}
