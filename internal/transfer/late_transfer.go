package transfer

// Request/response shapes for the Late publishing API.

type LatePublishRequest struct {
	ProfileID string   `json:"profileId"`
	Platform  string   `json:"platform"`
	Content   string   `json:"content"`
	MediaURLs []string `json:"mediaItems,omitempty"`
}

type LatePublishResponse struct {
	PostID    string `json:"postId"`
	PublicURL string `json:"url"`
}

type LateConnectResponse struct {
	AuthURL string `json:"authUrl"`
}

type LateProfile struct {
	ProfileID      string `json:"profileId"`
	Platform       string `json:"platform"`
	Name           string `json:"name"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
	AccessToken    string `json:"accessToken"`
}

type LateErrorResponse struct {
	Error string `json:"error"`
}
