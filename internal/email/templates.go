package email

import (
	"fmt"

	"github.com/osteele/liquid"
)

type template struct {
	subject *liquid.Template
	text    *liquid.Template
	html    *liquid.Template
}

type templateSource struct {
	subject, text, html string
}

var sources = map[Kind]templateSource{
	KindMagicLink: {
		subject: `Your {{ site_name }} sign-in link`,
		text: `Hello,

Use the link below to sign in to {{ site_name }}:

{{ url }}

The link works once and expires in {{ ttl_minutes }} minutes. If you did not ask for it, ignore this email.`,
		html: `<p>Hello,</p>
<p>Use the link below to sign in to {{ site_name }}:</p>
<p><a href="{{ url }}">Sign in</a></p>
<p>The link works once and expires in {{ ttl_minutes }} minutes. If you did not ask for it, ignore this email.</p>`,
	},
	KindQuoteReceived: {
		subject: `We received your quote request`,
		text: `Hi {{ name }},

Thanks for asking about a {{ project_type }} project. Our estimate is {{ amount }}; we will review the details and send you a final quote shortly.

{{ site_name }}`,
		html: `<p>Hi {{ name | escape }},</p>
<p>Thanks for asking about a {{ project_type | escape }} project. Our estimate is <strong>{{ amount }}</strong>; we will review the details and send you a final quote shortly.</p>
<p>{{ site_name }}</p>`,
	},
	KindQuoteAdminAlert: {
		subject: `New quote request from {{ name }}`,
		text: `{{ name }} <{{ email }}>{% if company != "" %} ({{ company }}){% endif %} asked for a {{ project_type }} quote.

Estimate: {{ amount }}
Features: {{ features | join: ", " }}
Timeline: {{ timeline }}

Requirements:
{{ requirements }}`,
		html: `<p>{{ name | escape }} &lt;{{ email | escape }}&gt;{% if company != "" %} ({{ company | escape }}){% endif %} asked for a {{ project_type | escape }} quote.</p>
<ul><li>Estimate: {{ amount }}</li><li>Features: {{ features | join: ", " }}</li><li>Timeline: {{ timeline | escape }}</li></ul>
<p>{{ requirements | escape }}</p>`,
	},
	KindQuoteSent: {
		subject: `Your quote from {{ site_name }}`,
		text: `Hi {{ name }},

Your quote for {{ amount }} is ready. Review, accept or decline it here:

{{ url }}

The quote is valid until {{ expires_at }}.`,
		html: `<p>Hi {{ name | escape }},</p>
<p>Your quote for <strong>{{ amount }}</strong> is ready.</p>
<p><a href="{{ url }}">Review your quote</a></p>
<p>The quote is valid until {{ expires_at }}.</p>`,
	},
	KindQuotePaid: {
		subject: `Payment received, thank you`,
		text: `Hi {{ name }},

We received your payment of {{ amount }}. We will be in touch about next steps.

{{ site_name }}`,
		html: `<p>Hi {{ name | escape }},</p>
<p>We received your payment of <strong>{{ amount }}</strong>. We will be in touch about next steps.</p>
<p>{{ site_name }}</p>`,
	},
	KindContactAdminAlert: {
		subject: `New contact message from {{ name }}`,
		text: `{{ name }} <{{ email }}>{% if phone != "" %} {{ phone }}{% endif %} wrote:

{{ message }}`,
		html: `<p>{{ name | escape }} &lt;{{ email | escape }}&gt;{% if phone != "" %} {{ phone | escape }}{% endif %} wrote:</p>
<blockquote>{{ message | escape }}</blockquote>`,
	},
}

// Renderer holds the parsed templates for every Kind.
type Renderer struct {
	templates map[Kind]template
}

func NewRenderer() (*Renderer, error) {
	engine := liquid.NewEngine()
	r := &Renderer{templates: make(map[Kind]template, len(sources))}

	for kind, src := range sources {
		var t template
		var err error
		if t.subject, err = engine.ParseString(src.subject); err != nil {
			return nil, fmt.Errorf("parse %s subject: %w", kind, err)
		}
		if t.text, err = engine.ParseString(src.text); err != nil {
			return nil, fmt.Errorf("parse %s text: %w", kind, err)
		}
		if t.html, err = engine.ParseString(src.html); err != nil {
			return nil, fmt.Errorf("parse %s html: %w", kind, err)
		}
		r.templates[kind] = t
	}
	return r, nil
}

// Render fills the templates for kind. The returned Message has no recipient.
func (r *Renderer) Render(kind Kind, bindings map[string]any) (Message, error) {
	t, ok := r.templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	subject, err := t.subject.RenderString(bindings)
	if err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", kind, err)
	}
	text, err := t.text.RenderString(bindings)
	if err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", kind, err)
	}
	html, err := t.html.RenderString(bindings)
	if err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", kind, err)
	}
	return Message{Subject: subject, TextBody: text, HTMLBody: html}, nil
}
