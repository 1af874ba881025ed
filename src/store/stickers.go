package store

// Stickers returns one page of the fixed catalog. Pages start at 1;
// anything lower is treated as 1.
func (s *Store) Stickers(page int) (sp StickerPage) {
	if page < 1 {
		page = 1
	}
	total := len(s.stickers)
	start := (page - 1) * StickerPageSize
	end := start + StickerPageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	sp.Stickers = append([]string{}, s.stickers[start:end]...)
	sp.HasMore = end < total
	sp.Page = page
	sp.Total = total
	sp.TotalPages = (total + StickerPageSize - 1) / StickerPageSize
	return
}
