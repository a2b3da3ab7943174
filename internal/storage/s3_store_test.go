package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestStorePutsObject(t *testing.T) {
	fake := &fakeS3{}
	s := &S3Store{cfg: S3Config{Bucket: "cards", Region: "eu-west-1", PublicBase: "https://cdn.example.com/"}, s3: fake}

	url, err := s.Store(context.Background(), "groups/g1/p.png", []byte("png"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://cdn.example.com/groups/g1/p.png" {
		t.Fatalf("url = %s", url)
	}
	if aws.ToString(fake.input.Bucket) != "cards" || aws.ToString(fake.input.ContentType) != "image/png" || string(fake.body) != "png" {
		t.Fatalf("input = %+v body=%q", fake.input, fake.body)
	}
}

func TestStorePropagatesErrors(t *testing.T) {
	s := &S3Store{cfg: S3Config{Bucket: "cards", Region: "eu-west-1"}, s3: &fakeS3{err: errors.New("denied")}}
	if _, err := s.Store(context.Background(), "k", []byte("x"), "image/png"); err == nil {
		t.Fatal("expected an error")
	}
	if _, err := s.Store(context.Background(), "", []byte("x"), "image/png"); err == nil {
		t.Fatal("expected an error for an empty key")
	}
}

func TestFileURL(t *testing.T) {
	cases := []struct {
		name string
		cfg  S3Config
		want string
	}{
		{"public base", S3Config{Bucket: "b", Region: "r", PublicBase: "https://cdn.x"}, "https://cdn.x/k.png"},
		{"endpoint", S3Config{Bucket: "b", Region: "r", Endpoint: "http://minio:9000/"}, "http://minio:9000/b/k.png"},
		{"aws", S3Config{Bucket: "b", Region: "us-east-1"}, "https://b.s3.us-east-1.amazonaws.com/k.png"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := (&S3Store{cfg: tc.cfg}).FileURL("k.png"); got != tc.want {
				t.Fatalf("FileURL = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDisabledStore(t *testing.T) {
	_, err := DisabledStore{}.Store(context.Background(), "k", nil, "image/png")
	if !errors.Is(err, cardcircle_errors.ErrServiceUnavailable) {
		t.Fatalf("got %v", err)
	}
}
