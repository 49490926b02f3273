// Пакет objectstore — объектное хранилище содержимого источников
// поверх S3-совместимого API. Реализует client.ObjectStore: скачивание
// по подписанной ссылке, загрузка с записью дайджеста в метаданные
// объекта и проверка наличия по дайджесту для дедупликации.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/bigkaa/prodstore/catalog"
	"github.com/bigkaa/prodstore/client"
)

// digestMetadataKey — ключ метаданных объекта с дайджестом содержимого.
const digestMetadataKey = "content-digest"

// Config — конфигурация хранилища.
type Config struct {
	// Endpoint — адрес S3-совместимого хранилища
	// (пусто — стандартный AWS)
	Endpoint string
	// Region — регион
	Region string
	// Bucket — имя бакета
	Bucket string
	// AccessKeyID и SecretAccessKey — статические учётные данные
	// (пусто — стандартная цепочка поставщиков)
	AccessKeyID     string
	SecretAccessKey string
	// UsePathStyle — path-style адресация (MinIO и совместимые)
	UsePathStyle bool
	// PresignTTL — срок действия подписанных ссылок
	PresignTTL time.Duration
}

// Store — объектное хранилище поверх S3.
type Store struct {
	s3client   *s3.Client
	presigner  *s3.PresignClient
	httpClient *http.Client
	bucket     string
	presignTTL time.Duration
	logger     *slog.Logger
}

// Интерфейс объектного хранилища реализован полностью
var _ client.ObjectStore = (*Store)(nil)

// New создаёт хранилище. Учётные данные берутся из конфигурации или
// стандартной цепочки поставщиков AWS.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("не задан бакет объектного хранилища")
	}
	if cfg.PresignTTL == 0 {
		cfg.PresignTTL = 15 * time.Minute
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации AWS: %w", err)
	}

	s3client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Store{
		s3client:   s3client,
		presigner:  s3.NewPresignClient(s3client),
		httpClient: &http.Client{},
		bucket:     cfg.Bucket,
		presignTTL: cfg.PresignTTL,
		logger:     logger.With(slog.String("component", "objectstore")),
	}, nil
}

// PresignGet возвращает подписанную ссылку на скачивание объекта.
func (s *Store) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("ошибка подписи ссылки на скачивание %s: %w", key, err)
	}
	return req.URL, nil
}

// PresignPut возвращает подписанную ссылку на загрузку объекта.
func (s *Store) PresignPut(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("ошибка подписи ссылки на загрузку %s: %w", key, err)
	}
	return req.URL, nil
}

// Get открывает содержимое источника на чтение через подписанную
// ссылку. Вызывающий код обязан закрыть ReadCloser.
func (s *Store) Get(ctx context.Context, src catalog.Source) (io.ReadCloser, error) {
	if src.StorageKey == "" {
		return nil, fmt.Errorf("источник %q не имеет ключа хранения", src.Slug)
	}

	signed, err := s.PresignGet(ctx, src.StorageKey)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signed, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса скачивания %s: %w", src.StorageKey, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка скачивания объекта %s: %w", src.StorageKey, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("хранилище вернуло статус %d для объекта %s", resp.StatusCode, src.StorageKey)
	}
	return resp.Body, nil
}

// Put загружает содержимое под ключом, записывая дайджест в метаданные
// объекта для последующей дедупликации.
func (s *Store) Put(ctx context.Context, key string, digest string, size int64, body io.Reader) error {
	_, err := s.s3client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		Metadata: map[string]string{
			digestMetadataKey: digest,
		},
	})
	if err != nil {
		return fmt.Errorf("ошибка загрузки объекта %s: %w", key, err)
	}

	s.logger.Debug("объект загружен",
		slog.String("key", key),
		slog.String("digest", digest),
		slog.Int64("size", size))
	return nil
}

// Exists сообщает, хранится ли под ключом объект с данным дайджестом.
// Отсутствие объекта — не ошибка.
func (s *Store) Exists(ctx context.Context, digest string, key string) (bool, error) {
	head, err := s.s3client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка проверки объекта %s: %w", key, err)
	}
	return head.Metadata[digestMetadataKey] == digest, nil
}

// isNotFound распознаёт ответ 404/NotFound от S3-совместимых хранилищ.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}
