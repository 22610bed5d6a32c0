package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sc "github.com/dmitrijs2005/memeforge/internal/server/config"
)

type fakeS3 struct {
	objects   map[string][]byte
	types     map[string]string
	putErr    error
	deleteErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = b
	f.types[*in.Bucket+"/"+*in.Key] = *in.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func testConfig() *sc.Config {
	return &sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "u",
		S3RootPassword: "p",
		S3BaseEndpoint: "http://127.0.0.1:9000/",
		S3Bucket:       "memes",
	}
}

func stubAWS(t *testing.T, client s3API, captured *s3.Options) {
	t.Helper()
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		for _, fn := range optFns {
			fn(captured)
		}
		return client
	}
}

func TestNewS3Store(t *testing.T) {
	t.Run("derives public url from endpoint", func(t *testing.T) {
		var opts s3.Options
		stubAWS(t, newFakeS3(), &opts)

		s, err := NewS3Store(context.Background(), testConfig())
		require.NoError(t, err)
		require.NotNil(t, opts.BaseEndpoint)
		assert.Equal(t, "http://127.0.0.1:9000/", *opts.BaseEndpoint)
		assert.True(t, opts.UsePathStyle)
		assert.Equal(t, "http://127.0.0.1:9000/memes/memes/m1.png", s.URL(KeyFor("m1")))
	})

	t.Run("explicit public url", func(t *testing.T) {
		var opts s3.Options
		stubAWS(t, newFakeS3(), &opts)

		cfg := testConfig()
		cfg.S3PublicBaseURL = "https://cdn.example.com/"
		s, err := NewS3Store(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/memes/m1.png", s.URL(KeyFor("m1")))
	})

	t.Run("config error", func(t *testing.T) {
		orig := loadDefaultAWSConfig
		t.Cleanup(func() { loadDefaultAWSConfig = orig })
		loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, errors.New("load-fail")
		}

		_, err := NewS3Store(context.Background(), testConfig())
		assert.EqualError(t, err, "load-fail")
	})
}

func TestS3Store_PutDelete(t *testing.T) {
	fake := newFakeS3()
	s := &S3Store{client: fake, bucket: "memes", publicBaseURL: "https://cdn.example.com"}
	ctx := context.Background()

	url, err := s.Put(ctx, "memes/a.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/memes/a.png", url)
	assert.Equal(t, []byte("png"), fake.objects["memes/memes/a.png"])
	assert.Equal(t, "image/png", fake.types["memes/memes/a.png"])

	require.NoError(t, s.Delete(ctx, "memes/a.png"))
	assert.Empty(t, fake.objects)

	fake.putErr = errors.New("boom")
	_, err = s.Put(ctx, "memes/b.png", []byte("x"), "image/png")
	assert.ErrorContains(t, err, "memes/b.png")

	fake.deleteErr = errors.New("boom")
	assert.Error(t, s.Delete(ctx, "memes/b.png"))
}
