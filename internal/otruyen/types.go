package otruyen

// Status values accepted by List.
const (
	StatusNew       = "truyen-moi"
	StatusUpcoming  = "sap-ra-mat"
	StatusOngoing   = "dang-phat-hanh"
	StatusCompleted = "hoan-thanh"
)

func validStatus(s string) bool {
	switch s {
	case StatusNew, StatusUpcoming, StatusOngoing, StatusCompleted:
		return true
	}
	return false
}

type envelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type Pagination struct {
	TotalItems        int `json:"totalItems"`
	TotalItemsPerPage int `json:"totalItemsPerPage"`
	CurrentPage       int `json:"currentPage"`
	PageRanges        int `json:"pageRanges"`
}

type Category struct {
	ID   string `json:"_id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// ChapterRef points at a chapter's image manifest.
type ChapterRef struct {
	Filename       string `json:"filename,omitempty"`
	ChapterName    string `json:"chapter_name,omitempty"`
	ChapterTitle   string `json:"chapter_title,omitempty"`
	ChapterAPIData string `json:"chapter_api_data,omitempty"`
}

type ChapterServer struct {
	ServerName string       `json:"server_name"`
	ServerData []ChapterRef `json:"server_data"`
}

type Comic struct {
	ID          string          `json:"_id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	OriginName  []string        `json:"origin_name,omitempty"`
	Content     string          `json:"content,omitempty"`
	Status      string          `json:"status"`
	ThumbURL    string          `json:"thumb_url"`
	Author      []string        `json:"author,omitempty"`
	Category    []Category      `json:"category,omitempty"`
	Chapters    []ChapterServer `json:"chapters,omitempty"`
	UpdatedAt   string          `json:"updatedAt,omitempty"`
	ChaptersNew []ChapterRef    `json:"chaptersLatest,omitempty"`
}

// Page is one page of a comic listing.
type Page struct {
	TitlePage string  `json:"titlePage,omitempty"`
	Items     []Comic `json:"items"`
	Params    struct {
		Pagination Pagination `json:"pagination"`
	} `json:"params"`
}

type categoryList struct {
	Items []Category `json:"items"`
}

type comicDetail struct {
	Item Comic `json:"item"`
}

// Chapter is a resolved chapter: absolute image URLs in page order.
type Chapter struct {
	Name   string   `json:"name,omitempty"`
	Images []string `json:"images"`
}

// chapterPayload covers both manifest layouts: a flat image list, or a CDN
// domain plus per-page files.
type chapterPayload struct {
	Images    []string `json:"images"`
	DomainCDN string   `json:"domain_cdn"`
	Item      struct {
		ChapterName  string `json:"chapter_name"`
		ChapterPath  string `json:"chapter_path"`
		ChapterImage []struct {
			ImagePage int    `json:"image_page"`
			ImageFile string `json:"image_file"`
		} `json:"chapter_image"`
	} `json:"item"`
}
