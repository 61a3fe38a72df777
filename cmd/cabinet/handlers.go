package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/driftworks/cabinet/internal/cabinet"
	"github.com/driftworks/cabinet/pkg/config"
	"github.com/driftworks/cabinet/pkg/types"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func setupRouter(service *cabinet.Service, authCfg *config.AuthConfig) *gin.Engine {
	if zerolog.GlobalLevel() == zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "cabinet",
			"time":    time.Now().UTC(),
		})
	})

	api := router.Group("/api/v1/cabinet")
	api.Use(authMiddleware(authCfg))
	{
		api.GET("/list", handleList(service))
		api.POST("/upload", handleUpload(service))
		api.DELETE("/delete", handleDelete(service))
		api.DELETE("/delete-prefix", handleDeletePrefix(service))
		api.POST("/comment", handleComment(service))
		api.POST("/folder", handleCreateFolder(service))
		api.GET("/download", handleDownload(service))
		api.POST("/maintenance/prune-folders", handlePruneFolders(service))
	}

	return router
}

// respondError maps the cabinet error taxonomy onto HTTP status codes
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cabinet.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, cabinet.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case cabinet.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func handleList(service *cabinet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		take := 0
		if raw := c.Query("take"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "take must be an integer"})
				return
			}
			take = parsed
		}

		listing, err := service.List(c.Request.Context(), c.Query("prefix"), take)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, listing)
	}
}

func handleUpload(service *cabinet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart file field is required"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			respondError(c, fmt.Errorf("failed to open upload: %w", err))
			return
		}
		defer file.Close()

		info, err := service.Upload(
			c.Request.Context(),
			getActor(c),
			c.Query("path"),
			fileHeader.Filename,
			fileHeader.Size,
			fileHeader.Header.Get("Content-Type"),
			file,
		)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"name":   info.Key,
			"url":    info.URL,
		})
	}
}

func handleDelete(service *cabinet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("name")
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}

		deleted, err := service.DeleteBlob(c.Request.Context(), getActor(c), name)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"name":    name,
			"deleted": deleted,
		})
	}
}

func handleDeletePrefix(service *cabinet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		prefix := c.Query("prefix")
		if prefix == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "prefix is required"})
			return
		}

		count, err := service.DeletePrefix(c.Request.Context(), getActor(c), prefix)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"prefix":       prefix,
			"deletedCount": count,
		})
	}
}

type commentRequest struct {
	TargetType int    `json:"targetType" binding:"required"`
	TargetPath string `json:"targetPath" binding:"required"`
	Comment    string `json:"comment"`
}

func handleComment(service *cabinet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req commentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "targetType and targetPath are required"})
			return
		}

		kind := types.MetadataKind(req.TargetType)
		if !kind.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "targetType must be 1 (file) or 2 (folder)"})
			return
		}

		if err := service.UpsertComment(c.Request.Context(), getActor(c), kind, req.TargetPath, req.Comment); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

type folderRequest struct {
	Path    string `json:"path" binding:"required"`
	Comment string `json:"comment"`
}

func handleCreateFolder(service *cabinet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req folderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
			return
		}

		path, err := service.CreateFolder(c.Request.Context(), getActor(c), req.Path, req.Comment)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok", "path": path})
	}
}

func handleDownload(service *cabinet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("name")
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}

		content, info, err := service.Download(c.Request.Context(), name)
		if err != nil {
			respondError(c, err)
			return
		}
		defer content.Close()

		headers := map[string]string{
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", baseName(info.Key)),
		}
		c.DataFromReader(http.StatusOK, info.Size, info.ContentType, content, headers)
	}
}

type pruneRequest struct {
	Path string `json:"path" binding:"required"`
}

func handlePruneFolders(service *cabinet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pruneRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
			return
		}

		pruned, err := service.CleanupEmptyAncestors(c.Request.Context(), getActor(c), req.Path)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok", "pruned": pruned})
	}
}

func baseName(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[i+1:]
		}
	}
	return key
}
