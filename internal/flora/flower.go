package flora

import (
	"fmt"
	"strings"
	"unicode"
)

// 元数据字段名，文本集合与Flower之间的唯一映射
const (
	KeyBotanicalName = "botanical_name"
	KeyFamily        = "family"
	KeyURL           = "url"
	KeyCommonName    = "common_name"
	KeyDescription   = "description"

	// KeyFloraID 图片文档指向所属文本文档的反向引用
	KeyFloraID = "flora_id"
)

// MaxImages 每条记录最多的图片槽位
const MaxImages = 4

// Flower 一条花卉记录
type Flower struct {
	BotanicalName string `json:"botanical_name"`
	Family        string `json:"family"`
	URL           string `json:"url"`
	CommonName    string `json:"common_name"`
	Description   string `json:"description"`
	Image1URL     string `json:"image1_url"`
	Image2URL     string `json:"image2_url"`
	Image3URL     string `json:"image3_url"`
	Image4URL     string `json:"image4_url"`

	Image1LocalURI string `json:"image1_local_uri,omitempty"`
	Image2LocalURI string `json:"image2_local_uri,omitempty"`
	Image3LocalURI string `json:"image3_local_uri,omitempty"`
	Image4LocalURI string `json:"image4_local_uri,omitempty"`
}

// ImageURLKey 返回第slot个图片URL的元数据键（从1开始）
func ImageURLKey(slot int) string {
	return fmt.Sprintf("image%d_url", slot)
}

// LocalURIKey 返回第slot个本地图片路径的元数据键（从1开始）
func LocalURIKey(slot int) string {
	return fmt.Sprintf("image%d_local_uri", slot)
}

// AllowedKeys 可以还原为Flower的元数据键，其余键在还原时被丢弃
func AllowedKeys() []string {
	keys := []string{KeyBotanicalName, KeyFamily, KeyURL, KeyCommonName, KeyDescription}
	for slot := 1; slot <= MaxImages; slot++ {
		keys = append(keys, ImageURLKey(slot))
	}
	for slot := 1; slot <= MaxImages; slot++ {
		keys = append(keys, LocalURIKey(slot))
	}
	return keys
}

// FromRow 由CSV行构建Flower，缺失字段默认为空字符串
func FromRow(row map[string]string) Flower {
	return Flower{
		BotanicalName: row[KeyBotanicalName],
		Family:        row[KeyFamily],
		URL:           row[KeyURL],
		CommonName:    row[KeyCommonName],
		Description:   row[KeyDescription],
		Image1URL:     row[ImageURLKey(1)],
		Image2URL:     row[ImageURLKey(2)],
		Image3URL:     row[ImageURLKey(3)],
		Image4URL:     row[ImageURLKey(4)],
	}
}

// FromMetadata 从集合元数据还原Flower，只识别AllowedKeys中的键
func FromMetadata(metadata map[string]any) Flower {
	get := func(key string) string {
		v, ok := metadata[key]
		if !ok || v == nil {
			return ""
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return Flower{
		BotanicalName:  get(KeyBotanicalName),
		Family:         get(KeyFamily),
		URL:            get(KeyURL),
		CommonName:     get(KeyCommonName),
		Description:    get(KeyDescription),
		Image1URL:      get(ImageURLKey(1)),
		Image2URL:      get(ImageURLKey(2)),
		Image3URL:      get(ImageURLKey(3)),
		Image4URL:      get(ImageURLKey(4)),
		Image1LocalURI: get(LocalURIKey(1)),
		Image2LocalURI: get(LocalURIKey(2)),
		Image3LocalURI: get(LocalURIKey(3)),
		Image4LocalURI: get(LocalURIKey(4)),
	}
}

// ImageURLs 按槽位顺序返回图片URL
func (f Flower) ImageURLs() [MaxImages]string {
	return [MaxImages]string{f.Image1URL, f.Image2URL, f.Image3URL, f.Image4URL}
}

// WithLocalURIs 返回带本地图片路径的副本，原值不变
func (f Flower) WithLocalURIs(localURIs map[string]string) Flower {
	f.Image1LocalURI = localURIs[LocalURIKey(1)]
	f.Image2LocalURI = localURIs[LocalURIKey(2)]
	f.Image3LocalURI = localURIs[LocalURIKey(3)]
	f.Image4LocalURI = localURIs[LocalURIKey(4)]
	return f
}

// Metadata 生成文本文档元数据：记录字段 + 已下载图片的本地路径
func (f Flower) Metadata(localURIs map[string]string) map[string]any {
	metadata := map[string]any{
		KeyBotanicalName: f.BotanicalName,
		KeyFamily:        f.Family,
		KeyURL:           f.URL,
		KeyCommonName:    f.CommonName,
		KeyDescription:   f.Description,
	}
	for i, u := range f.ImageURLs() {
		metadata[ImageURLKey(i+1)] = u
	}
	for key, path := range localURIs {
		metadata[key] = path
	}
	return metadata
}

// MissingRequired 返回为空的必填字段名
func (f Flower) MissingRequired() []string {
	var missing []string
	if strings.TrimSpace(f.BotanicalName) == "" {
		missing = append(missing, KeyBotanicalName)
	}
	if strings.TrimSpace(f.Family) == "" {
		missing = append(missing, KeyFamily)
	}
	if strings.TrimSpace(f.URL) == "" {
		missing = append(missing, KeyURL)
	}
	if strings.TrimSpace(f.CommonName) == "" {
		missing = append(missing, KeyCommonName)
	}
	return missing
}

// JoinTextFields 生成用于文本向量化的文档内容
func JoinTextFields(f Flower) string {
	return fmt.Sprintf("Botanical name: %s Common name: %s Family: %s Description: %s",
		f.BotanicalName, f.CommonName, f.Family, f.Description)
}

// SafeFilename 由显示名生成文件系统安全的图片文件名（不含扩展名）
func SafeFilename(name string, slot int) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	safe := strings.TrimRightFunc(b.String(), unicode.IsSpace)
	safe = strings.ToLower(strings.ReplaceAll(safe, " ", "_"))
	return fmt.Sprintf("%s_img%d", safe, slot)
}
