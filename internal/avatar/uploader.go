package avatar

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// ErrDisabled signals that no upload backend is configured.
var ErrDisabled = errors.New("avatar: uploads disabled")

// Result describes a stored avatar.
type Result struct {
	URL      string
	PublicID string
}

// Uploader stores avatar images and returns where they ended up.
type Uploader interface {
	Upload(ctx context.Context, userID string, r io.Reader) (*Result, error)
	Remove(ctx context.Context, publicID string) error
}

// Config carries Cloudinary credentials.
type Config struct {
	Enabled   bool
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

type cloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryUploader builds an Uploader backed by Cloudinary. It returns
// ErrDisabled when the configuration turns uploads off.
func NewCloudinaryUploader(cfg Config) (Uploader, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("avatar: init cloudinary: %w", err)
	}

	folder := cfg.Folder
	if folder == "" {
		folder = "contactly/avatars"
	}

	return &cloudinaryUploader{cld: cld, folder: folder}, nil
}

// Upload stores the image under a deterministic public id so re-uploading
// replaces the previous avatar instead of accumulating copies.
func (u *cloudinaryUploader) Upload(ctx context.Context, userID string, r io.Reader) (*Result, error) {
	res, err := u.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:       u.folder,
		PublicID:     "user_" + userID,
		Overwrite:    api.Bool(true),
		ResourceType: "image",
	})
	if err != nil {
		return nil, fmt.Errorf("avatar: upload: %w", err)
	}

	return &Result{URL: res.SecureURL, PublicID: res.PublicID}, nil
}

func (u *cloudinaryUploader) Remove(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}

	_, err := u.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("avatar: destroy: %w", err)
	}
	return nil
}
