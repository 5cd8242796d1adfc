package services

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/eagleisbatman/agrivision-mcp-server/internal/config"
	"github.com/eagleisbatman/agrivision-mcp-server/internal/metrics"
)

const promptCacheSize = 128

// promptSection is one named block of the instruction text. Numbered sections
// render as "N. TITLE"; rules are appended after them without a number.
type promptSection struct {
	title  string
	render func(crop string) string
}

type promptKey struct {
	mode   config.AdvisoryMode
	format config.OutputFormat
}

type promptLayout struct {
	sections        []promptSection
	rules           []promptSection
	toolDescription string
}

var (
	cropSection = promptSection{
		title: "CROP",
		render: func(crop string) string {
			if crop == "" {
				return "CROP IDENTIFICATION\n" +
					"Identify the crop shown in the photograph. Give the common name, the scientific name when you are " +
					"confident of it, and your confidence (high, medium or low)."
			}
			return fmt.Sprintf("CROP VERIFICATION\n"+
				"The farmer reports that this plant is: %s.\n"+
				"Confirm whether the photograph is consistent with this crop. If it is not, say so clearly, name the crop "+
				"you believe is shown, and base the rest of the report on what you see.", cropDisplayName(crop))
		},
	}

	healthSection = staticSection("HEALTH STATUS",
		"Classify the overall condition of the plant as one of: Healthy, Mild stress, Moderate disease or pest damage, "+
			"Severe disease or pest damage. State the visible evidence for the classification.")

	issuesSection = staticSection("ISSUES DETECTED",
		"List every disease, pest, nutrient deficiency or abiotic stress you can see. Repeat the following block for each issue:\n"+
			"- Name: common name (and pathogen or pest species when identifiable)\n"+
			"- Type: disease, pest, nutrient deficiency or abiotic stress\n"+
			"- Symptoms: the visible signs supporting this finding\n"+
			"- Affected parts: leaves, stem, fruit, roots or whole plant\n"+
			"- Severity: low, medium or high\n"+
			"- Confidence: high, medium or low\n"+
			"If no issues are visible, write \"No issues detected\".")

	growthStageSection = staticSection("GROWTH STAGE",
		"Estimate the current growth stage (for example seedling, vegetative, flowering, fruiting or maturity) and "+
			"mention the visible features that indicate it.")

	notesSection = staticSection("DIAGNOSTIC NOTES",
		"Note any limits of the photograph (blur, lighting, only part of the plant visible), conditions that look "+
			"similar and should be ruled out, and what additional observation in the field would confirm the diagnosis.")

	treatmentSection = staticSection("TREATMENT RECOMMENDATIONS",
		"For each issue detected, recommend practical management options suitable for smallholder farmers:\n"+
			"- Organic options: cultural practices and biological or botanical controls\n"+
			"- Chemical options: active ingredient classes with general application guidance; never invent product "+
			"brand names or exact dosages\n"+
			"- Preventive measures: steps that reduce the chance of recurrence this season and the next\n"+
			"If the plant is healthy, give preventive measures only.")

	safetySection = staticSection("SAFETY DISCLAIMER",
		"End the report with a short disclaimer: this is an AI-assisted assessment from a single photograph, it "+
			"should be confirmed by a local extension officer or agronomist before acting, and any chemical product "+
			"must be used according to its label and local regulations with appropriate protective equipment.")

	structuredFormatRule = staticSection("",
		"FORMATTING RULES\n"+
			"- Use the numbered section titles above as headings, in the same order.\n"+
			"- Use short bullet points inside each section.\n"+
			"- Do not add sections that are not listed above.\n"+
			"- Keep the whole report under 500 words.")

	textFormatRule = staticSection("",
		"FORMATTING RULES\n"+
			"- Write in plain conversational sentences suitable for reading on a basic phone or aloud.\n"+
			"- Do not use markdown, headings, tables or bullet symbols.\n"+
			"- Cover the topics above in the same order, one short paragraph each.\n"+
			"- Keep the whole report under 300 words.")

	diagnosisOnlyScopeRule = staticSection("",
		"SCOPE RULE\n"+
			"This report is a diagnosis only. Do not recommend remedies, products, inputs, dosages or management "+
			"actions of any kind. Describe what is wrong, not what to do about it.")

	fullAdvisoryScopeRule = staticSection("",
		"SCOPE RULE\n"+
			"This report includes diagnosis and advice. Complete every section above, including the TREATMENT "+
			"RECOMMENDATIONS and SAFETY DISCLAIMER sections.")
)

var (
	diagnosisSections = []promptSection{cropSection, healthSection, issuesSection, growthStageSection, notesSection}
	advisorySections  = []promptSection{cropSection, healthSection, issuesSection, growthStageSection, notesSection, treatmentSection, safetySection}

	diagnosisOnlyToolDescription = "Diagnose plant health from a photograph. Identifies the crop, classifies its health status, " +
		"detects diseases, pests and nutrient deficiencies, and estimates the growth stage. Returns a diagnostic report " +
		"without management advice."
	fullAdvisoryToolDescription = "Diagnose plant health from a photograph and advise on management. Identifies the crop, " +
		"classifies its health status, detects diseases, pests and nutrient deficiencies, estimates the growth stage, and " +
		"returns organic, chemical and preventive treatment recommendations with a safety disclaimer."
)

// promptLayouts selects the sections and rules for every configuration
var promptLayouts = map[promptKey]promptLayout{
	{config.AdvisoryDiagnosisOnly, config.FormatStructured}: {
		sections:        diagnosisSections,
		rules:           []promptSection{structuredFormatRule, diagnosisOnlyScopeRule},
		toolDescription: diagnosisOnlyToolDescription,
	},
	{config.AdvisoryDiagnosisOnly, config.FormatText}: {
		sections:        diagnosisSections,
		rules:           []promptSection{textFormatRule, diagnosisOnlyScopeRule},
		toolDescription: diagnosisOnlyToolDescription,
	},
	{config.AdvisoryFull, config.FormatStructured}: {
		sections:        advisorySections,
		rules:           []promptSection{structuredFormatRule, fullAdvisoryScopeRule},
		toolDescription: fullAdvisoryToolDescription,
	},
	{config.AdvisoryFull, config.FormatText}: {
		sections:        advisorySections,
		rules:           []promptSection{textFormatRule, fullAdvisoryScopeRule},
		toolDescription: fullAdvisoryToolDescription,
	},
}

const promptPreamble = "You are an expert agronomist and plant pathologist supporting smallholder farmers. " +
	"Examine the attached photograph of a plant and produce a diagnostic report based only on what is visible in the image."

func staticSection(title, body string) promptSection {
	text := body
	if title != "" {
		text = title + "\n" + body
	}
	return promptSection{title: title, render: func(string) string { return text }}
}

func cropDisplayName(crop string) string {
	return strings.ReplaceAll(crop, "_", " ")
}

// PromptComposer builds the instruction text sent to the vision model. Output
// depends only on the configuration and the crop hint.
type PromptComposer struct {
	cfg    config.ServiceConfig
	layout promptLayout
	cache  *lru.Cache[string, string] // crop -> composed prompt
}

// NewPromptComposer creates a composer for the given configuration
func NewPromptComposer(cfg config.ServiceConfig) (*PromptComposer, error) {
	layout, ok := promptLayouts[promptKey{cfg.AdvisoryMode, cfg.OutputFormat}]
	if !ok {
		return nil, fmt.Errorf("no prompt layout for advisory mode %q and output format %q", cfg.AdvisoryMode, cfg.OutputFormat)
	}

	cache, err := lru.New[string, string](promptCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt cache: %w", err)
	}

	return &PromptComposer{cfg: cfg, layout: layout, cache: cache}, nil
}

// Compose returns the prompt for the given crop; an empty crop asks the model
// to identify the crop itself.
func (p *PromptComposer) Compose(crop string) string {
	// Oversized hints are built fresh so they never occupy the cache
	if len(crop) > MaxCropLength {
		return p.build(crop)
	}

	if prompt, ok := p.cache.Get(crop); ok {
		metrics.PromptCacheHits.Inc()
		return prompt
	}
	metrics.PromptCacheMisses.Inc()

	prompt := p.build(crop)
	p.cache.Add(crop, prompt)
	return prompt
}

func (p *PromptComposer) build(crop string) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\nReport the following sections in this order:\n")

	for i, section := range p.layout.sections {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, section.render(crop))
	}
	for _, rule := range p.layout.rules {
		b.WriteString("\n")
		b.WriteString(rule.render(crop))
		b.WriteString("\n")
	}

	return b.String()
}

// ToolDescription returns the tool description matching the advisory mode
func (p *PromptComposer) ToolDescription() string {
	return p.layout.toolDescription
}

// IncludesTreatment reports whether reports carry treatment guidance
func (p *PromptComposer) IncludesTreatment() bool {
	return p.cfg.AdvisoryMode == config.AdvisoryFull
}
