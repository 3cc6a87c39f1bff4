package models

import "time"

// DownloadRequest is the input of a single download. An empty
// OutputFolder means the configured default folder.
type DownloadRequest struct {
	SourceURL    string
	OutputFolder string
}

// ResolvedPaths are the absolute locations used for one invocation.
type ResolvedPaths struct {
	DownloaderPath string
	TranscoderPath string
	OutputFolder   string
}

// OutputFile is the audio file selected as the response payload.
type OutputFile struct {
	Path    string
	Name    string
	ModTime time.Time
	Size    int64
}

// PathReport is the payload of the path diagnostics endpoint.
type PathReport struct {
	CurrentDirectory      string `json:"current_directory"`
	FFmpegPath            string `json:"ffmpeg_path"`
	FFmpegExists          bool   `json:"ffmpeg_exists"`
	SpotdlPath            string `json:"spotdl_path"`
	SpotdlExists          bool   `json:"spotdl_exists"`
	DefaultDownloadFolder string `json:"default_download_folder"`
	DefaultFolderExists   bool   `json:"default_folder_exists"`
	CustomDownloadFolder  string `json:"custom_download_folder"`
	CustomFolderExists    bool   `json:"custom_folder_exists"`
	PythonExecutable      string `json:"python_executable"`
}
