package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gemmy/internal/orders"
	"gemmy/internal/photos"
)

// Multipart overhead allowed on top of the image itself.
const uploadSlack = 1 << 20

var errPhotoRequired = errors.New("photo file is required")

type reviewRequest struct {
	Status string `json:"status" binding:"required,oneof=pending approved rejected"`
	Note   string `json:"note" binding:"max=1000"`
}

// parsePhotoUpload reads the "photo" part of a multipart body and checks its
// name and size before anything is decoded.
func parsePhotoUpload(c *gin.Context) (*multipart.FileHeader, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, photos.MaxUploadBytes+uploadSlack)

	file, err := c.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, errPhotoRequired
		}
		return nil, err
	}
	if err := photos.CheckUpload(file.Filename, file.Size); err != nil {
		return nil, err
	}
	return file, nil
}

func UploadPhoto(svc *orders.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "UploadPhoto")

		header, err := parsePhotoUpload(c)
		if err != nil {
			respondWithError(c, log, http.StatusBadRequest, "UploadPhoto", err.Error())
			return
		}

		f, err := header.Open()
		if err != nil {
			respondWithError(c, log, http.StatusBadRequest, "UploadPhoto", "photo could not be read")
			return
		}
		defer f.Close()

		photo, err := svc.UploadPhoto(c.Request.Context(), actorFrom(c), c.Param("token"), header.Filename, f)
		if err != nil {
			respondServiceError(c, log, "UploadPhoto", err)
			return
		}
		c.JSON(http.StatusCreated, photo)
	}
}

func ReviewPhoto(svc *orders.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "ReviewPhoto")

		index, err := strconv.Atoi(c.Param("index"))
		if err != nil || index < 0 {
			respondWithError(c, log, http.StatusBadRequest, "ReviewPhoto", "invalid photo index")
			return
		}

		var req reviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		review, err := svc.ReviewPhoto(c.Request.Context(), actorFrom(c), c.Param("token"), index, req.Status, req.Note)
		if err != nil {
			respondServiceError(c, log, "ReviewPhoto", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"index": index, "review": review})
	}
}

// ServeBlob streams a stored photo by its storage path.
func ServeBlob(blobs photos.BlobStore, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "ServeBlob")

		path := strings.TrimPrefix(c.Param("path"), "/")
		if path == "" {
			respondWithError(c, log, http.StatusNotFound, "ServeBlob", "file not found")
			return
		}

		rc, err := blobs.Open(c.Request.Context(), path)
		if errors.Is(err, photos.ErrBlobNotFound) {
			respondWithError(c, log, http.StatusNotFound, "ServeBlob", "file not found")
			return
		}
		if err != nil {
			respondServiceError(c, log, "ServeBlob", err)
			return
		}
		defer rc.Close()

		c.Header("Cache-Control", "public, max-age=31536000, immutable")
		c.Status(http.StatusOK)
		c.Header("Content-Type", "image/jpeg")
		if _, err := io.Copy(c.Writer, rc); err != nil {
			log.Warn("blob stream interrupted", zap.String("path", path), zap.Error(err))
		}
	}
}
