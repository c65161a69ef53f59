package checkout

// State is the checkout session's position in the payment flow
type State int

const (
	StateForm State = iota
	StateGenerating
	StatePending
	StateSuccess
	StateError
	// StateExpired is only reached when Options.MaxPending is set
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateForm:
		return "form"
	case StateGenerating:
		return "generating"
	case StatePending:
		return "pending"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session can only leave s through Reset
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateError || s == StateExpired
}

// Narrative is the text shown to the buyer for a state
type Narrative struct {
	Title   string
	Message string
}

var narratives = map[State]Narrative{
	StateForm: {
		Title:   "Gerar QR Code PIX",
		Message: "Preencha seus dados para gerar o pagamento.",
	},
	StateGenerating: {
		Message: "Gerando seu PIX...",
	},
	StatePending: {
		Title:   "Pague com PIX para liberar seu acesso",
		Message: "Aguardando confirmação do pagamento...",
	},
	StateSuccess: {
		Title:   "Pagamento Confirmado!",
		Message: "Seu acesso foi liberado! Enviamos um e-mail com sua chave de licença e instruções de acesso. Verifique sua caixa de entrada e spam.",
	},
	StateError: {
		Title:   "Ocorreu um erro",
		Message: "Não foi possível processar seu pagamento. Por favor, feche e tente novamente.",
	},
	StateExpired: {
		Title:   "PIX expirado",
		Message: "O tempo para pagamento terminou. Por favor, feche e gere um novo PIX.",
	},
}

// NarrativeFor returns the buyer-facing text for s
func NarrativeFor(s State) Narrative { return narratives[s] }
