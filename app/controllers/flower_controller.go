package controllers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/aihub/flora-search/internal/errors"
	"github.com/aihub/flora-search/internal/flora"
	"github.com/aihub/flora-search/internal/index"
	"github.com/aihub/flora-search/internal/search"
	"github.com/aihub/flora-search/internal/store"
)

// DefaultMaxUploadBytes 上传查询图片的默认大小上限
const DefaultMaxUploadBytes int64 = 4 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

var formValidator = validator.New()

// Searcher 花卉检索
type Searcher interface {
	Search(ctx context.Context, q search.Query) ([]flora.Flower, error)
}

// Catalog 集合统计
type Catalog interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// FlowerController 花卉检索控制器
// 依赖字段须导出，路由为每个请求复制控制器时才会带上
type FlowerController struct {
	BaseController

	Searcher       Searcher
	Catalog        Catalog
	MaxUploadBytes int64
	DefaultResults int
}

type searchForm struct {
	N int `validate:"min=1,max=100"`
}

// SearchResponse 检索响应
type SearchResponse struct {
	Q     *string        `json:"q"`
	QImg  *string        `json:"q_img"`
	Items []flora.Flower `json:"items"`
}

// Search 以文本q或图片q_img检索花卉
func (c *FlowerController) Search() {
	text := strings.TrimSpace(c.GetString("q"))
	file, header, fileErr := c.GetFile("q_img")
	if fileErr != nil && !errors.Is(fileErr, http.ErrMissingFile) && !errors.Is(fileErr, http.ErrNotMultipart) {
		c.JSONAppError(apperrors.NewInvalidInputError("q_img", fileErr.Error()))
		return
	}
	if file != nil {
		defer file.Close()
	}

	if text == "" && file == nil {
		c.JSONAppError(apperrors.NewValidationError("Provide q or q_img"))
		return
	}

	form := searchForm{N: c.defaultResults()}
	if raw := c.GetString("n"); raw != "" {
		n, err := c.GetInt("n")
		if err != nil {
			c.JSONAppError(apperrors.NewInvalidInputError("n", "must be an integer"))
			return
		}
		form.N = n
	}
	if err := formValidator.Struct(form); err != nil {
		c.JSONAppError(apperrors.NewInvalidInputError("n", "must be between 1 and 100"))
		return
	}

	query := search.Query{K: form.N}
	resp := SearchResponse{Items: []flora.Flower{}}
	if text != "" {
		resp.Q = &text
		query.Text = text
	}

	if file != nil {
		contentType := header.Header.Get("Content-Type")
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			contentType = mediaType
		}
		if !allowedImageTypes[contentType] {
			c.JSONAppError(apperrors.NewUnsupportedMediaTypeError(contentType))
			return
		}

		limit := c.maxUploadBytes()
		if header.Size > limit {
			c.JSONAppError(apperrors.NewFileTooLargeError(limit))
			return
		}
		payload, err := io.ReadAll(io.LimitReader(file, limit+1))
		if err != nil {
			c.JSONAppError(apperrors.NewInvalidInputError("q_img", "unreadable upload"))
			return
		}
		if int64(len(payload)) > limit {
			c.JSONAppError(apperrors.NewFileTooLargeError(limit))
			return
		}

		filename := header.Filename
		resp.QImg = &filename
		query.Image = payload
	}

	flowers, err := c.Searcher.Search(c.Ctx.Request.Context(), query)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			c.JSONAppError(apperrors.NewValidationError("Provide q or q_img"))
			return
		}
		c.JSONAppError(apperrors.NewSearchFailedError(err))
		return
	}
	if flowers != nil {
		resp.Items = flowers
	}

	c.JSON(http.StatusOK, resp)
}

// Get 获取花卉
func (c *FlowerController) Get() {
	id, ok := c.parseIntParam(":id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, map[string]int64{"flower_id": id})
}

// Stats 获取集合统计
func (c *FlowerController) Stats() {
	stats, err := c.Catalog.Stats(c.Ctx.Request.Context())
	if errors.Is(err, index.ErrCollectionNotFound) {
		c.JSONAppError(apperrors.NewNotFoundError("collection"))
		return
	}
	if err != nil {
		c.JSONAppError(apperrors.NewSystemError(apperrors.ErrCodeExternalService, "Stats unavailable").WithCause(err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (c *FlowerController) defaultResults() int {
	if c.DefaultResults > 0 {
		return c.DefaultResults
	}
	return search.DefaultK
}

func (c *FlowerController) maxUploadBytes() int64 {
	if c.MaxUploadBytes > 0 {
		return c.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}
