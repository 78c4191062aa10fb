package handlers

import (
	"github.com/go-chi/chi/v5"
)

// Mount registers the session API on r. Paths are relative to /api.
func (h *SessionHandler) Mount(r chi.Router) {
	r.Route("/batch", func(r chi.Router) {
		r.Get("/", h.BatchStatus)
		r.Post("/", h.UploadBatch)
		r.Post("/directory", h.LoadDirectory)
	})

	r.Route("/photos", func(r chi.Router) {
		r.Get("/", h.ListPhotos)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetPhoto)
			r.Get("/original", h.GetOriginal)
			r.Get("/thumbnail", h.GetThumbnail)
			r.Post("/select", h.ToggleSelect)
			r.Put("/tags", h.SetPhotoTags)
			r.Post("/tags/{tag}", h.AddPhotoTag)
			r.Delete("/tags/{tag}", h.RemovePhotoTag)
			r.Delete("/year", h.UnassignYear)
		})
	})

	r.Get("/years", h.ListYears)
	r.Post("/years/{year}/assign", h.AssignYear)
	r.Post("/years/{year}/filter", h.ToggleFilter)
	r.Delete("/filter", h.ClearFilter)

	r.Route("/tags", func(r chi.Router) {
		r.Get("/", h.ListTags)
		r.Post("/", h.AddTag)
		r.Put("/{tag}/selection", h.ApplyTagToSelection)
	})

	r.Post("/import", h.ImportCSV)

	r.Get("/export/csv", h.ExportCSV)
	r.Get("/export/archive", h.ExportArchive)
	r.Get("/exports", h.ListExports)
	r.Get("/exports/{id}/download", h.DownloadExport)
}
