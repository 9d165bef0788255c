package export

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"album-scanner/discovery"
	"album-scanner/settings"
)

// Format names accepted by Render.
const (
	FormatList     = "list"
	FormatHTML     = "html"
	FormatMosaic   = "mosaic"
	FormatGallery  = "gallery"
	FormatMarkdown = "markdown"
)

// Known sources of app images, usually not wanted in an album.
var unwantedImages = []*regexp.Regexp{
	regexp.MustCompile(`^https?://[\w\-.]+\.gstatic\.com/`),
	regexp.MustCompile(`^https?://[\w\-.]+\.yimg\.com/`),
	regexp.MustCompile(`^https?://[\w\-.]+\.istockimg\.com/static/`),
	regexp.MustCompile(`^https?://instagramstatic[\w\-.]+\.akamaihd\.net/`),
	regexp.MustCompile(`doubleclick\.net`),
	regexp.MustCompile(`adsafeprotected\.com`),
	regexp.MustCompile(`insightexpressai\.com`),
	regexp.MustCompile(`adzerk\.net`),
}

var (
	googlePhotos     = regexp.MustCompile(`^https://[\w.]+\.googleusercontent\.com/`)
	googlePhotosSize = regexp.MustCompile(`=(w\d+)?-?(h\d+)?-?no`)
)

// Unwanted reports whether url belongs to a known ad or static asset host.
func Unwanted(url string) bool {
	for _, re := range unwantedImages {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// DefaultSelection keeps the records a user would want by default.
func DefaultSelection(records []discovery.ImageRecord) []discovery.ImageRecord {
	out := make([]discovery.ImageRecord, 0, len(records))
	for _, r := range records {
		if !Unwanted(r.URL) {
			out = append(out, r)
		}
	}
	return out
}

// ResizeGooglePhotos asks Google Photos for a rendition of the given size.
// Other URLs are returned unchanged.
func ResizeGooglePhotos(url string, width, height int) string {
	if (width <= 0 && height <= 0) || !googlePhotos.MatchString(url) {
		return url
	}
	var size strings.Builder
	size.WriteString("=")
	if width > 0 {
		fmt.Fprintf(&size, "w%d-", width)
	}
	if height > 0 {
		fmt.Fprintf(&size, "h%d-", height)
	}
	size.WriteString("no")

	replaced := false
	return googlePhotosSize.ReplaceAllStringFunc(url, func(m string) string {
		if replaced {
			return m
		}
		replaced = true
		return size.String()
	})
}

// Prepare applies the per-record URL rewrites configured in s.
func Prepare(records []discovery.ImageRecord, s settings.Settings) []discovery.ImageRecord {
	out := make([]discovery.ImageRecord, len(records))
	for i, r := range records {
		out[i] = discovery.ImageRecord{URL: ResizeGooglePhotos(r.URL, s.GPWidth, s.GPHeight), Link: r.Link}
	}
	return out
}

// Options controls how HTML renders each record.
type Options struct {
	WithImg     bool
	WithLinks   bool
	DataLink    bool
	TargetBlank bool
	ImgStyle    string
}

// List returns the image URLs, one per line.
func List(records []discovery.ImageRecord) string {
	return HTML(records, Options{})
}

// HTML renders one line per record: the bare URL or an <img> tag,
// optionally wrapped in its link or carrying it as a data-link attribute.
func HTML(records []discovery.ImageRecord, opts Options) string {
	styleTag := ""
	if opts.ImgStyle != "" {
		styleTag = fmt.Sprintf(` style="%s"`, opts.ImgStyle)
	}
	targetTag := ""
	if opts.TargetBlank {
		targetTag = ` target="_blank"`
	}

	var b strings.Builder
	for _, r := range records {
		txt := r.URL
		if opts.WithImg {
			txt = fmt.Sprintf(`<img src="%s"%s>`, txt, styleTag)
		}
		if opts.WithLinks && r.Link != "" {
			if opts.DataLink {
				txt = fmt.Sprintf(`%s data-link="%s">`, txt[:len(txt)-1], r.Link)
			} else {
				txt = fmt.Sprintf(`<a href="%s"%s>%s</a>`, r.Link, targetTag, txt)
			}
		}
		b.WriteString(txt)
		b.WriteString("\n")
	}
	return b.String()
}

// Mosaic renders the records as size-capped <img> tags.
func Mosaic(records []discovery.ImageRecord, s settings.Settings) string {
	var style strings.Builder
	if s.MosaicMaxWidth > 0 {
		fmt.Fprintf(&style, "max-width:%dpx;", s.MosaicMaxWidth)
	}
	if s.MosaicMaxHeight > 0 {
		fmt.Fprintf(&style, "max-height:%dpx;", s.MosaicMaxHeight)
	}
	return HTML(records, Options{
		WithImg:     true,
		WithLinks:   s.MosaicLinks,
		TargetBlank: s.PopupLinks,
		ImgStyle:    style.String(),
	})
}

const galleryTemplate = `
<div id="%[1]s" style="width:100%%;max-width:%[2]dpx;height:%[3]dpx;display:none;">
%[4]s</div>
<script type="text/javascript" src="https://cdn.jsdelivr.net/npm/jquery@3.5.1/dist/jquery.min.js"></script>
<script>
  (MyGalleries=(typeof MyGalleries === 'undefined' ? [] : MyGalleries)).push({gallId:'#%[1]s',autoplay:true,lightbox:true,debug:false,popupLinks:%[5]t});
  if(typeof GalleryLoaded === 'undefined'){
    GalleryLoaded = jQuery(function(){
      jQuery.ajax({url:'https://cdn.jsdelivr.net/npm/galleria@1.6.1/dist/galleria.min.js',dataType:'script',cache:true}).done(function(){
        Galleria.loadTheme('https://cdn.jsdelivr.net/npm/galleria@1.6.1/dist/themes/classic/galleria.classic.js');
        for(var n in MyGalleries){
          Galleria.run(MyGalleries[n].gallId, MyGalleries[n]);
          jQuery(MyGalleries[n].gallId).css('display','block');
        }
      });
    });
  }
</script>`

// Gallery renders an embeddable Galleria widget. An empty id gets a
// random one so several galleries can share a page.
func Gallery(records []discovery.ImageRecord, s settings.Settings, id string) string {
	if id == "" {
		id = GalleryID()
	}
	items := HTML(records, Options{WithImg: true, WithLinks: s.GalLinks, DataLink: s.GalLinks})
	return fmt.Sprintf(galleryTemplate, id, s.GalWidth, s.GalHeight, items, s.PopupLinks)
}

// GalleryID returns a short random hex identifier.
func GalleryID() string {
	return strings.ToUpper(fmt.Sprintf("%x", 65536+rand.IntN(120000)))
}

// Markdown renders the mosaic as Markdown.
func Markdown(records []discovery.ImageRecord, s settings.Settings) (string, error) {
	converter := md.NewConverter("", true, nil)
	out, err := converter.ConvertString(Mosaic(records, s))
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	return out, nil
}

// Known reports whether Render accepts format.
func Known(format string) bool {
	switch format {
	case FormatList, FormatHTML, FormatMosaic, FormatGallery, FormatMarkdown:
		return true
	}
	return false
}

// Render dispatches on format.
func Render(format string, records []discovery.ImageRecord, s settings.Settings) (string, error) {
	records = Prepare(records, s)
	switch format {
	case FormatList, "":
		return List(records), nil
	case FormatHTML:
		return HTML(records, Options{WithImg: true, WithLinks: true, TargetBlank: s.PopupLinks}), nil
	case FormatMosaic:
		return Mosaic(records, s), nil
	case FormatGallery:
		return Gallery(records, s, ""), nil
	case FormatMarkdown:
		return Markdown(records, s)
	}
	return "", fmt.Errorf("unknown export format %q", format)
}
