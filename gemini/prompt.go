package gemini

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/product-descriptions-ai/models"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Codes offered in the UI that are not BCP 47 tags
var languageAliases = map[string]string{
	"jp": "ja",
}

// languageName turns a language code into its English name, e.g. "vi" -> "Vietnamese (vi)".
// Unknown codes are passed through unchanged.
func languageName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		code = models.DefaultLanguage
	}
	tagCode := strings.ToLower(code)
	if alias, ok := languageAliases[tagCode]; ok {
		tagCode = alias
	}
	tag, err := language.Parse(tagCode)
	if err != nil {
		return code
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return code
	}
	return fmt.Sprintf("%s (%s)", name, code)
}

// plainText strips markup from descriptions that were pasted or exported as HTML
func plainText(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find("script, style").Remove()
	doc.Find("br, p, li, div").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func buildPrompt(info models.ProductInfo, withImage bool) string {
	name := strings.TrimSpace(info.ProductName)
	details := plainText(info.Description)
	lang := languageName(info.Language)

	if info.ContentType == models.ContentTypeSocialMediaPost {
		return fmt.Sprintf(`You are a professional social media manager specializing in e-commerce.
Your task is to create engaging social media posts for a product.

Product Information:
- Product Name: %s
- Details/Keywords: %s

Instructions:
1. Generate 2-3 short, catchy, and distinct social media posts.
2. Incorporate relevant emojis and a call-to-action in each post.
3. Adopt a '%s' tone of voice.
4. Ensure all content is in the specified language: '%s'.
`, name, details, info.Tone, lang)
	}

	imageLine := ""
	if withImage {
		imageLine = "- An image of the product is also provided for visual analysis.\n"
	}
	return fmt.Sprintf(`You are an expert e-commerce copywriter, SEO specialist, and marketing strategist.
Your task is to analyze product information (and an optional image) to generate a complete marketing kit.

Analyze this product:
- Product Name: %s
- Existing Description / Details / Keywords: %s
%s
Instructions:
1. Product Descriptions: Generate 2-3 distinct and engaging product descriptions.
2. SEO Metadata: Create an SEO-friendly meta title, meta description, and keywords list.
3. Feature Bullets: Write 3-5 compelling bullet points, linking features to benefits.
4. Target Audience: Briefly describe the ideal customer.
5. Call to Actions (CTAs): Suggest 2-3 strong, action-oriented phrases.
6. Social Media Hashtags: Provide relevant hashtags (without the '#').
7. Tone and Language: Adopt a '%s' tone and write everything in '%s'.
`, name, details, imageLine, info.Tone, lang)
}
