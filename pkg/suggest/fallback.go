package suggest

import "hash/fnv"

// Fallback holds the fixed suggestions returned when generation fails.
type Fallback struct {
	items []Suggestion
}

// NewFallback returns a Fallback over items, or the built-in set when
// items is empty.
func NewFallback(items []Suggestion) *Fallback {
	if len(items) == 0 {
		items = defaultFallbacks
	}
	return &Fallback{items: items}
}

// Pick returns a fallback suggestion for an actor on a given day.
// The choice is stable for the same actor and date key.
func (f *Fallback) Pick(actorID, dateKey string) Suggestion {
	h := fnv.New32a()
	_, _ = h.Write([]byte(actorID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(dateKey))

	s := f.items[h.Sum32()%uint32(len(f.items))]
	if s.Tags != nil {
		s.Tags = append([]string(nil), s.Tags...)
	}
	return s
}

// Len returns the number of fallback suggestions.
func (f *Fallback) Len() int {
	return len(f.items)
}

var defaultFallbacks = []Suggestion{
	{
		Title: "Uma pausa para respirar",
		Body:  "Reserve três minutos só para você: inspire contando até quatro, segure por quatro e solte devagar. Repita algumas vezes e perceba o corpo desacelerar.",
		Tags:  []string{"autocuidado", "respiracao"},
	},
	{
		Title: "Momento de conexão",
		Body:  "Escolha uma atividade simples para fazer junto com seu filho hoje, como ler uma história ou desenhar. Dez minutos de atenção inteira valem muito.",
		Tags:  []string{"vinculo", "brincar"},
	},
	{
		Title: "Pequena vitória do dia",
		Body:  "Anote uma coisa que deu certo hoje, por menor que pareça. Reconhecer o que você já faz bem ajuda a aliviar a cobrança.",
		Tags:  []string{"gratidao", "bem-estar"},
	},
	{
		Title: "Hidrate-se",
		Body:  "Deixe um copo de água por perto e beba devagar agora. Cuidar do básico também é cuidar de quem você ama.",
		Tags:  []string{"autocuidado", "saude"},
	},
	{
		Title: "Rotina mais leve",
		Body:  "Escolha uma tarefa da lista de hoje que pode esperar até amanhã. Abrir espaço na agenda é uma forma de cuidado.",
		Tags:  []string{"rotina", "organizacao"},
	},
}
