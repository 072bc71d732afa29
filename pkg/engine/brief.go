package engine

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-go-golems/offerforge/pkg/gateway"
	"github.com/go-go-golems/offerforge/pkg/patch"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Brief is the input of an automated run. The multi-line fields hold one entry per line.
type Brief struct {
	ProjectName string           `json:"project_name,omitempty" yaml:"project_name,omitempty"`
	UserID      string           `json:"user_id" yaml:"user_id"`
	Language    gateway.Language `json:"language" yaml:"language"`
	Niche       string           `json:"niche" yaml:"niche"`
	Promise     string           `json:"promise" yaml:"promise"`
	TargetPrice float64          `json:"target_price" yaml:"target_price"`
	Currency    string           `json:"currency" yaml:"currency"`
	AvatarName  string           `json:"avatar_name" yaml:"avatar_name"`
	AgeRange    string           `json:"age_range" yaml:"age_range"`
	PainPoints  string           `json:"pain_points" yaml:"pain_points"`
	Reviews     string           `json:"reviews" yaml:"reviews"`
	FAQs        string           `json:"faqs" yaml:"faqs"`
}

const (
	demoAvatarID  = "auto-demo-avatar"
	painSource    = "auto-demo"
	painCategory  = "marketing"
	painFrequency = 3
	defaultUserID = "auto-demo"
	projectPrefix = "AutoDemo: "
)

func DefaultBrief() Brief {
	return Brief{
		UserID:      defaultUserID,
		Language:    gateway.LanguagePTBR,
		Niche:       "Marketing Digital",
		Promise:     "Transforme seu negócio em uma máquina de vendas online e fature R$ 30.000/mês em até 90 dias",
		TargetPrice: 997,
		Currency:    "BRL",
		AvatarName:  "Empreendedor Digital",
		AgeRange:    "28-45 anos",
		PainPoints: strings.Join([]string{
			"Não consegue gerar leads qualificados",
			"Gasta dinheiro em anúncios sem retorno",
			"Não sabe criar funis de vendas eficazes",
			"Perde vendas por não ter follow-up adequado",
		}, "\n"),
		Reviews: strings.Join([]string{
			"Preciso de algo que realmente funcione, não mais teoria",
			"Já tentei vários métodos mas nenhum trouxe resultado prático",
			"Quero algo que me ensine passo a passo como implementar",
		}, "\n"),
		FAQs: strings.Join([]string{
			"Funciona para iniciantes no marketing digital?",
			"Preciso investir muito dinheiro em anúncios?",
			"Em quanto tempo posso ver os primeiros resultados?",
		}, "\n"),
	}
}

// LoadBrief reads a YAML brief on top of DefaultBrief, so a file only needs the keys it changes.
func LoadBrief(path string) (Brief, error) {
	b := DefaultBrief()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Brief{}, errors.Wrap(err, "read brief")
	}
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return Brief{}, errors.Wrapf(err, "parse brief %s", path)
	}
	return b, nil
}

// ApplyOverrides applies dotted key=value overrides addressed by yaml field name.
func (b Brief) ApplyOverrides(p patch.Patch) (Brief, error) {
	out := b
	if err := patch.ApplyTo(&out, p); err != nil {
		return Brief{}, errors.Wrap(err, "apply brief overrides")
	}
	return out, nil
}

func (b Brief) Validate() error {
	var missing []string
	if strings.TrimSpace(b.Niche) == "" {
		missing = append(missing, "niche")
	}
	if strings.TrimSpace(b.Promise) == "" {
		missing = append(missing, "promise")
	}
	if strings.TrimSpace(b.Currency) == "" {
		missing = append(missing, "currency")
	}
	if len(missing) > 0 {
		return errors.Errorf("brief is missing %s", strings.Join(missing, ", "))
	}
	if b.TargetPrice <= 0 {
		return errors.Errorf("brief target_price must be positive, got %v", b.TargetPrice)
	}
	return nil
}

func (b Brief) Name() string {
	if n := strings.TrimSpace(b.ProjectName); n != "" {
		return n
	}
	return projectPrefix + b.Niche
}

func (b Brief) user() string {
	if b.UserID == "" {
		return defaultUserID
	}
	return b.UserID
}

func (b Brief) language() gateway.Language {
	if b.Language == "" {
		return gateway.LanguagePTBR
	}
	return b.Language
}

func (b Brief) GatewayBrief() gateway.Brief {
	return gateway.Brief{
		Niche:           b.Niche,
		AvatarID:        demoAvatarID,
		Promise:         b.Promise,
		TargetPrice:     b.TargetPrice,
		Currency:        b.Currency,
		AdditionalNotes: fmt.Sprintf("Avatar: %s (%s)", b.AvatarName, b.AgeRange),
	}
}

func (b Brief) PainResearch() gateway.PainResearch {
	pr := gateway.PainResearch{
		PainPoints:  []gateway.PainPoint{},
		Reviews:     lines(b.Reviews),
		FAQs:        lines(b.FAQs),
		ManualInput: b.PainPoints,
	}
	for _, p := range lines(b.PainPoints) {
		pr.PainPoints = append(pr.PainPoints, gateway.PainPoint{
			Description: p,
			Frequency:   painFrequency,
			Source:      painSource,
			Category:    painCategory,
		})
	}
	return pr
}

// lines splits on newlines, trims entries and drops blank ones.
func lines(s string) []string {
	out := []string{}
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
