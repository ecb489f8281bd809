// internal/domain/release/rules.go
package release

// Rules holds the token and pattern sets used to clean titles and filter search results.
// They can be overridden from a YAML file (see config.MATCHING_RULES_FILE).
type Rules struct {
	// PublisherTokens are stripped from tracked titles before searching.
	PublisherTokens []string `yaml:"publisher_tokens"`
	// ExclusionTokens mark special or limited editions and merchandise.
	ExclusionTokens []string `yaml:"exclusion_tokens"`
	// VolumePatterns are regular expressions tried in order against a
	// width-folded title; the first capture group is the volume number.
	VolumePatterns []string `yaml:"volume_patterns"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		PublisherTokens: []string{
			"集英社", "講談社", "小学館", "KADOKAWA", "角川書店", "秋田書店",
			"白泉社", "スクウェア・エニックス", "双葉社", "芳文社", "新潮社",
			"竹書房", "一迅社", "徳間書店",
		},
		ExclusionTokens: []string{
			"特装版", "限定版", "豪華版", "特別版", "初回版", "同梱版",
			"小冊子付", "ドラマCD付", "DVD付", "Blu-ray付", "BD付", "グッズ付",
			"画集", "ファンブック", "公式ガイド", "カレンダー", "ノベライズ",
			"ジャンプリミックス",
		},
		VolumePatterns: []string{
			`\((\d+)\)`,
			`第(\d+)巻`,
			`(\d+)巻`,
			`(?i)vol\.?\s*(\d+)`,
			`(\d+)\s*$`,
			`\s(\d+)`,
		},
	}
}
