package mockgateway

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/go-go-golems/offerforge/pkg/gateway"
)

func buildOffer(b gateway.Brief, pr gateway.PainResearch) gateway.GeneratedOffer {
	pain := "falta de resultados"
	if len(pr.PainPoints) > 0 {
		pain = strings.ToLower(pr.PainPoints[0].Description)
	}
	return gateway.GeneratedOffer{
		Headline:    fmt.Sprintf("%s: %s", b.Niche, b.Promise),
		MainPromise: b.Promise,
		ProofElements: []string{
			fmt.Sprintf("%d depoimentos reais", len(pr.Reviews)),
			"Método testado em " + b.Niche,
		},
		Bonuses: []string{
			"Bônus 1: checklist de implementação",
			"Bônus 2: templates prontos",
			"Bônus 3: comunidade exclusiva",
		},
		Guarantees: []string{
			"Garantia incondicional de 7 dias",
			"Garantia de resultado em 30 dias",
		},
		PriceJustification: fmt.Sprintf("Resolve %s por %s %s", pain, b.Currency, formatPrice(b.TargetPrice)),
		UrgencyElements:    []string{"Vagas limitadas", "Preço de lançamento"},
	}
}

func buildMaterials(b gateway.Brief, o gateway.GeneratedOffer, lang gateway.Language, kinds []gateway.MaterialKind) gateway.Materials {
	var m gateway.Materials
	for _, k := range kinds {
		switch k {
		case gateway.MaterialVSL:
			m.VSLScript = &gateway.VSLScript{
				Title:             o.Headline,
				Hook:              "Você já tentou de tudo em " + b.Niche + "?",
				ProblemAgitation:  o.PriceJustification,
				SolutionIntro:     o.MainPromise,
				Benefits:          append([]string{}, o.ProofElements...),
				SocialProof:       strings.Join(o.ProofElements, ", "),
				OfferPresentation: o.Headline,
				Guarantee:         strings.Join(o.Guarantees, "; "),
				CallToAction:      "Clique no botão abaixo",
				EstimatedDuration: 90,
				Language:          lang,
			}
		case gateway.MaterialEmails:
			seq := &gateway.EmailSequence{SequenceName: b.Niche + " launch", Language: lang}
			for i, subject := range []string{"Bem-vindo", "O problema", "A solução", "Prova", "Última chance"} {
				seq.Emails = append(seq.Emails, gateway.Email{
					Subject: fmt.Sprintf("%d. %s", i+1, subject),
					Content: o.MainPromise,
				})
			}
			m.EmailSequence = seq
		case gateway.MaterialSocial:
			for _, platform := range []string{"instagram", "facebook", "linkedin"} {
				m.SocialContent = append(m.SocialContent, gateway.SocialContent{
					Platform:    platform,
					ContentType: "post",
					Content:     o.Headline,
					Hashtags:    []string{"#" + strings.ReplaceAll(strings.ToLower(b.Niche), " ", "")},
					Language:    lang,
				})
			}
		}
	}
	return m
}

func buildLandingPage(b gateway.Brief, o gateway.GeneratedOffer, template string, now gateway.Timestamp) gateway.LandingPage {
	var html strings.Builder
	html.WriteString("<!DOCTYPE html>\n<html>\n<head><meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">")
	fmt.Fprintf(&html, "<title>%s</title></head>\n<body class=%q>\n", o.Headline, template)
	fmt.Fprintf(&html, "<h1>%s</h1>\n<p>%s</p>\n<ul>\n", o.Headline, o.MainPromise)
	for _, bonus := range o.Bonuses {
		fmt.Fprintf(&html, "<li>%s</li>\n", bonus)
	}
	fmt.Fprintf(&html, "</ul>\n<a class=\"cta\" href=\"#\">%s %s</a>\n</body>\n</html>\n", b.Currency, formatPrice(b.TargetPrice))
	return gateway.LandingPage{
		TemplateName: template,
		HTML:         html.String(),
		CSS:          "body{font-family:sans-serif;margin:0;padding:16px}.cta{display:block;padding:12px}",
		JS:           "document.querySelector('.cta').addEventListener('click',function(){});",
		GeneratedAt:  now,
	}
}

func exportZIP(p gateway.Project) ([]byte, error) {
	files := map[string][]byte{}
	js, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, err
	}
	files["project.json"] = js
	files["project.pdf"] = exportPDF(p)
	if p.Materials != nil && p.Materials.LandingPage != nil {
		lp := p.Materials.LandingPage
		files["landing/index.html"] = []byte(lp.HTMLContent)
		files["landing/style.css"] = []byte(lp.CSSContent)
		files["landing/script.js"] = []byte(lp.JSContent)
	}
	return zipFiles(files)
}

func exportHTML(p gateway.Project) ([]byte, error) {
	lp := p.Materials.LandingPage
	return zipFiles(map[string][]byte{
		"index.html": []byte(lp.HTMLContent),
		"style.css":  []byte(lp.CSSContent),
		"script.js":  []byte(lp.JSContent),
	})
}

// exportPDF emits a single-page document; enough for viewers to open, not a full renderer.
func exportPDF(p gateway.Project) []byte {
	text := strings.NewReplacer("(", "[", ")", "]", "\\", "/").Replace(p.Name)
	content := fmt.Sprintf("BT /F1 18 Tf 50 750 Td (%s) Tj ET", text)
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func zipFiles(files map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		f, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := f.Write(files[name]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(round2(v), 'f', -1, 64)
}
