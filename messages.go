package main

const (
	MsgNoFilePart      = "No file part in the request"
	MsgNoFileSelected  = "No file selected"
	MsgInvalidFileType = "Invalid file type. Only .wav or .mp3 are allowed."
	MsgUploadTooLarge  = "Uploaded file is too large"
	MsgBusy            = "Server is busy, please retry shortly"
	MsgModelNotLoaded  = "Model is not loaded"
)

// Error codes carried next to the message in error responses.
const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidFile    = "invalid_file"
	CodeBusy           = "server_busy"
	CodeRenderError    = "render_error"
)
