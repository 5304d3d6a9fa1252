/*
Copyright © 2024 the stofsub authors.
This file is part of stofsub.

stofsub is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

stofsub is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with stofsub.  If not, see <http://www.gnu.org/licenses/>.
*/

package stofsubutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cloud/blob/fileblob"
	"github.com/google/go-cloud/blob/gcsblob"
	"github.com/google/go-cloud/blob/s3blob"
	"github.com/google/go-cloud/gcp"
)

// downloadRetries is the number of attempts made for each remote
// object before giving up.
const downloadRetries = 4

// IsBlob returns whether the given path represents a blob
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// maybeDownload checks if the input is an existing local file. If
// not, and it is an http(s) or blob URL, it downloads the file and
// returns the path to the downloaded copy.
func maybeDownload(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, nil
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return downloadHTTP(path)
	}
	if IsBlob(path) {
		return downloadBlob(ctx, path)
	}
	return path, nil
}

// downloadHTTP downloads a file from the specified URL and returns
// the path to the downloaded file.
func downloadHTTP(path string) (string, error) {
	dir, err := os.MkdirTemp("", "stofsub")
	if err != nil {
		return "", fmt.Errorf("stofsub: creating temporary download directory: %v", err)
	}
	local := filepath.Join(dir, filepath.Base(path))
	op := func() error {
		w, err := os.Create(local)
		if err != nil {
			return err
		}
		defer w.Close()
		resp, err := http.Get(path)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %s", resp.Status)
		}
		_, err = io.Copy(w, resp.Body)
		return err
	}
	if err := backoff.Retry(op, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), downloadRetries)); err != nil {
		return "", fmt.Errorf("stofsub: downloading %s: %v", path, err)
	}
	return local, nil
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// where bucketName must be in the format 'provider://name'. The
// accepted providers are "file" for the local filesystem (e.g., for
// testing), "gs" for Google Cloud Storage, and "s3" for AWS S3.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	u, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("stofsub: opening bucket %s: %v", bucketName, err)
	}
	switch u.Scheme {
	case "file":
		return fileblob.NewBucket(filepath.Join(u.Hostname(), u.Path))
	case "gs":
		return gsBucket(ctx, u.Hostname())
	case "s3":
		return s3Bucket(ctx, u.Hostname())
	default:
		return nil, fmt.Errorf("stofsub: invalid bucket provider %s", u.Scheme)
	}
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, name, c)
}

// s3Bucket opens an S3 storage bucket. Credentials are taken from the
// AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY environment variables;
// when they are unset the bucket is accessed anonymously, which is
// how NOAA's public STOFS buckets are meant to be read.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	creds := credentials.NewEnvCredentials()
	if _, err := creds.Get(); err != nil {
		creds = credentials.AnonymousCredentials
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: creds,
	}
	s := session.Must(session.NewSession(c))
	return s3blob.OpenBucket(ctx, s, name)
}

// downloadBlob downloads the specified file from blob storage and
// returns the path to the local copy.
func downloadBlob(ctx context.Context, path string) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("stofsub: downloading %s: %v", path, err)
	}
	bucket, err := OpenBucket(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp("", "stofsub")
	if err != nil {
		return "", fmt.Errorf("stofsub: creating temporary download directory: %v", err)
	}
	local := filepath.Join(dir, filepath.Base(u.Path))
	key := strings.TrimPrefix(u.Path, "/")
	op := func() error {
		w, err := os.Create(local)
		if err != nil {
			return err
		}
		defer w.Close()
		r, err := bucket.NewReader(ctx, key)
		if err != nil {
			return err
		}
		defer r.Close()
		_, err = io.Copy(w, r)
		return err
	}
	if err := backoff.Retry(op, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), downloadRetries)); err != nil {
		return "", fmt.Errorf("stofsub: downloading %s: %v", path, err)
	}
	return local, nil
}

// uploadBlob copies the local file src to the given key within a
// blob bucket. bucketName may include a key prefix
// (e.g. s3://bucket/subsets), which is prepended to key.
func uploadBlob(ctx context.Context, bucketName, key, src string) error {
	u, err := url.Parse(bucketName)
	if err != nil {
		return fmt.Errorf("stofsub: uploading to %s: %v", bucketName, err)
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return err
	}
	// The file provider resolves the whole URL path to a
	// directory; the cloud providers only resolve the bucket name.
	if u.Scheme != "file" {
		if prefix := strings.TrimPrefix(u.Path, "/"); prefix != "" {
			key = path.Join(prefix, key)
		}
	}
	r, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("stofsub: uploading %s: %v", src, err)
	}
	defer r.Close()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("stofsub: uploading %s: %v", src, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("stofsub: uploading %s: %v", src, err)
	}
	return w.Close()
}
