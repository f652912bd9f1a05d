package platform

import "strconv"

// Both platforms speak the same REST dialect, so the wire shapes are
// shared. Permission masks travel as decimal strings.

type apiUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	GlobalName  string `json:"global_name"`
	Avatar      string `json:"avatar"`
	Banner      string `json:"banner"`
	Bio         string `json:"bio"`
	Pronouns    string `json:"pronouns"`
	AccentColor *int   `json:"accent_color"`
}

type apiProfile struct {
	UserProfile struct {
		Bio         string `json:"bio"`
		Pronouns    string `json:"pronouns"`
		AccentColor *int   `json:"accent_color"`
		ThemeColors []int  `json:"theme_colors"`
	} `json:"user_profile"`
}

type apiGuild struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Owner       bool   `json:"owner"`
	MemberCount int    `json:"approximate_member_count"`
}

type apiChannel struct {
	ID         string         `json:"id"`
	Type       int            `json:"type"`
	Name       string         `json:"name"`
	Position   int            `json:"position"`
	ParentID   string         `json:"parent_id"`
	Topic      string         `json:"topic"`
	NSFW       bool           `json:"nsfw"`
	Bitrate    int            `json:"bitrate"`
	UserLimit  int            `json:"user_limit"`
	Overwrites []apiOverwrite `json:"permission_overwrites"`
}

type apiOverwrite struct {
	ID    string `json:"id"`
	Type  int    `json:"type"`
	Allow string `json:"allow"`
	Deny  string `json:"deny"`
}

type apiRole struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Hoist       bool   `json:"hoist"`
	Position    int    `json:"position"`
	Permissions string `json:"permissions"`
	Managed     bool   `json:"managed"`
	Mentionable bool   `json:"mentionable"`
}

type apiEmoji struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Animated bool   `json:"animated"`
}

type apiSticker struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	FormatType  int    `json:"format_type"` // 1 png, 2 apng, 3 lottie, 4 gif
}

// parsePermissions decodes a decimal permission mask. Malformed values
// decode to zero rather than failing a whole listing.
func parsePermissions(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func formatPermissions(v uint64) string {
	return strconv.FormatUint(v, 10)
}
