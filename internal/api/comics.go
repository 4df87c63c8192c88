package api

import (
	"errors"
	"net/http"
	"strconv"

	"comic-edge/internal/otruyen"
	"comic-edge/internal/prefetch"
)

const (
	// thumbnails of the first cards on a listing are warmed in the background
	prefetchThumbs = 6
	// leading chapter pages are warmed ahead of the reader
	prefetchChapterPages = 3
	thumbWidth           = 300
)

type comicCard struct {
	otruyen.Comic
	Thumb  string `json:"thumb"`
	SrcSet string `json:"srcset,omitempty"`
}

type pageView struct {
	TitlePage  string             `json:"title_page,omitempty"`
	Items      []comicCard        `json:"items"`
	Pagination otruyen.Pagination `json:"pagination"`
}

func (h *Handler) cards(items []otruyen.Comic) []comicCard {
	out := make([]comicCard, 0, len(items))
	for _, c := range items {
		thumb := h.comics.ThumbURL(c.ThumbURL)
		out = append(out, comicCard{
			Comic:  c,
			Thumb:  h.comics.OptimizedImageURL(thumb, thumbWidth, 0),
			SrcSet: h.comics.SrcSet(thumb, []int{150, 300, 450}),
		})
	}
	return out
}

func (h *Handler) view(p otruyen.Page) pageView {
	cards := h.cards(p.Items)
	for i := 0; i < len(cards) && i < prefetchThumbs; i++ {
		h.queue.Enqueue(cards[i].Thumb, prefetch.Low)
	}
	return pageView{TitlePage: p.TitlePage, Items: cards, Pagination: p.Params.Pagination}
}

func (h *Handler) upstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, otruyen.ErrUpstream):
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func pageParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

/* ---------------- GET /v1/home ---------------- */

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	p, err := h.comics.Home(r.Context(), pageParam(r))
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(p))
}

/* ---------------- GET /v1/list/{status} ---------------- */

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, err := h.comics.List(r.Context(), r.PathValue("status"), pageParam(r))
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(p))
}

/* ---------------- GET /v1/categories ---------------- */

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.comics.Categories(r.Context())
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

/* ---------------- GET /v1/categories/{slug} ---------------- */

func (h *Handler) ByCategory(w http.ResponseWriter, r *http.Request) {
	p, err := h.comics.ByCategory(r.Context(), r.PathValue("slug"), pageParam(r))
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(p))
}

/* ---------------- GET /v1/comics/{slug} ---------------- */

func (h *Handler) Comic(w http.ResponseWriter, r *http.Request) {
	c, err := h.comics.Comic(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.upstreamError(w, err)
		return
	}

	// the first listed chapter is the likeliest next read
	if len(c.Chapters) > 0 && len(c.Chapters[0].ServerData) > 0 {
		if next := c.Chapters[0].ServerData[0].ChapterAPIData; next != "" {
			h.queue.EnqueueTask(prefetch.Task{Target: next, Kind: prefetch.KindAPI, Priority: prefetch.Low})
		}
	}
	writeJSON(w, http.StatusOK, h.cards([]otruyen.Comic{c})[0])
}

/* ---------------- GET /v1/search ---------------- */

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		http.Error(w, "missing keyword", http.StatusBadRequest)
		return
	}
	p, err := h.comics.Search(r.Context(), keyword)
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageView{TitlePage: p.TitlePage, Items: h.cards(p.Items), Pagination: p.Params.Pagination})
}

/* ---------------- GET /v1/chapter ---------------- */

func (h *Handler) Chapter(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return
	}
	ch, err := h.comics.Chapter(r.Context(), target)
	if err != nil {
		h.upstreamError(w, err)
		return
	}

	for i := 0; i < len(ch.Images) && i < prefetchChapterPages; i++ {
		h.queue.Enqueue(ch.Images[i], prefetch.High)
	}
	writeJSON(w, http.StatusOK, ch)
}
