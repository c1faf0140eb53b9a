package dto

type DocumentResponse struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ExportDocumentRequest struct {
	Format string `json:"format" validate:"required,oneof=markdown pdf docx"`
}

type ExportDocumentResponse struct {
	URL string `json:"url"`
}
