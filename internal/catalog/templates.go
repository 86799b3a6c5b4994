package catalog

import "fmt"

// Template keys.
const (
	NamePrompt          = "pedindo_nome"
	Greeting            = "saudacao"
	IdentifiedGreeting  = "saudacao_identificada"
	Farewell            = "encerramento"
	Thanks              = "agradecimento"
	ProductHint         = "dica_produto"
	TechnicalHint       = "dica_problema"
	NotUnderstood       = "nao_entendido"
	Menu                = "menu_principal"
	MenuOptions         = "menu_opcoes"
	MenuFallback        = "menu_nao_entendido"
	InvalidOption       = "opcao_invalida"
	InvalidSelection    = "selecao_invalida"
	MultipleMatches     = "multiplos_usuarios"
	OptionTechnical     = "problema_tecnico"
	OptionOrder         = "status_pedido"
	OptionProduct       = "duvida_produto"
	OptionOther         = "outras_questoes"
	AccountData         = "dados_cadastrais"
	NotIdentified       = "usuario_nao_identificado"
	Handoff             = "transferencia_atendente"
	OutsideHours        = "fora_horario"
	QueuePosition       = "posicao_fila"
	AgentAssigned       = "atendente_designado"
	AwaitingAgent       = "aguardando_atendente"
	Analysing           = "analisando_solicitacao"
	TechnicalResolution = "resolucao_tecnica"
	OrderInfo           = "informacao_pedido"
	ProductInfo         = "informacao_produto"
	OtherAck            = "solicitacao_recebida"
	TimeoutWarning      = "timeout_warning"
	TimeoutNotice       = "timeout_finalizado"
	SessionExpired      = "sessao_expirada"
	ConversationEnded   = "conversa_encerrada"
	ClosingResolved     = "encerramento_resolvido"
	ClosingUnresolved   = "encerramento_nao_resolvido"
	InvalidMessage      = "mensagem_invalida"
	GenericError        = "erro_generico"
)

// NotProvided is the per-field fallback for missing customer data.
const NotProvided = "Não informado"

func one(s string) []string { return []string{s} }

const menuBody = "📋 **MENU PRINCIPAL**\n\n" +
	"Por favor, escolha uma das opções abaixo:\n\n" +
	"[1] Reportar problema técnico\n" +
	"   📝 Problemas com sistema, erros, bugs, lentidão\n\n" +
	"[2] Consultar status de pedido/serviço\n" +
	"   📝 Acompanhar pedidos, serviços em andamento\n\n" +
	"[3] Dúvidas sobre produtos/serviços\n" +
	"   📝 Informações sobre produtos, preços, especificações\n\n" +
	"[4] Visualizar dados cadastrais\n" +
	"   📝 Consultar seus dados, atualizar informações\n\n" +
	"[5] Falar com atendente humano (abrir chamado)\n" +
	"   📝 Transferir para um de nossos especialistas\n\n" +
	"[6] Outras questões\n" +
	"   📝 Assuntos não listados acima\n\n" +
	"Digite apenas o número da opção (1-6):"

// namePrefix renders "Maria, " when a name is known.
func namePrefix(p Params) string {
	if n := p.get("nome", ""); n != "" {
		return n + ", "
	}
	return ""
}

func builtins() map[string]template {
	return map[string]template{
		NamePrompt: func(Params) []string {
			return []string{
				"Para personalizar seu atendimento, qual seu nome?",
				"Antes de começarmos, como posso chamar você?",
				"Por favor, digite seu nome para continuarmos:",
				"Qual é o seu nome? Assim posso te ajudar melhor!",
			}
		},
		Greeting: func(Params) []string {
			return []string{
				"Olá! 😊 Sou o assistente virtual. Como posso ajudá-lo hoje?",
				"Oi! Tudo bem? Eu sou o assistente virtual. Em que posso ser útil?",
				"Bem-vindo! Eu sou seu assistente virtual. Como posso ajudar?",
			}
		},
		IdentifiedGreeting: func(p Params) []string {
			nome := p.get("nome", "Cliente")
			return []string{
				fmt.Sprintf("Olá, %s! Que bom te ver de novo! 😊", nome),
				fmt.Sprintf("Oi, %s! Como vai? Espero que bem!", nome),
				fmt.Sprintf("%s, é sempre um prazer! 👋", nome),
				fmt.Sprintf("Que bom falar com você novamente, %s!", nome),
			}
		},
		Farewell: func(Params) []string {
			return []string{
				"Obrigado por conversar comigo! Volte quando precisar. Tenha um ótimo dia! 👋",
				"Foi um prazer ajudar! Qualquer dúvida, estou aqui. Até logo! 😊",
				"Agradeço pelo contato! Espero ter ajudado. Até a próxima! ✨",
			}
		},
		Thanks: func(Params) []string {
			return one("De nada! Fico feliz em ajudar. Precisa de mais alguma coisa?")
		},
		ProductHint: func(Params) []string {
			return one("💼 Para dúvidas sobre produtos, preços ou estoque, escolha a opção 3 e me diga o nome do produto.")
		},
		TechnicalHint: func(Params) []string {
			return one("🔧 Entendi que você está com um problema. Escolha a opção 1 para descrever o que está acontecendo.")
		},
		NotUnderstood: func(Params) []string {
			return []string{
				"Não entendi.",
				"Desculpe, não consegui entender sua mensagem.",
				"Hmm, não compreendi o que você quis dizer.",
			}
		},
		Menu: func(p Params) []string {
			greeting := "Olá! 👋\n\n"
			if n := p.get("nome", ""); n != "" {
				greeting = fmt.Sprintf("Olá, %s! 👋\n\n", n)
			}
			return one(greeting + menuBody)
		},
		MenuOptions: func(Params) []string {
			return one(menuBody)
		},
		MenuFallback: func(Params) []string {
			return one("Você está no menu principal.")
		},
		InvalidOption: func(Params) []string {
			return one("❌ Opção inválida. Digite um número entre 1 e 6.")
		},
		InvalidSelection: func(p Params) []string {
			return one("❌ Seleção inválida. Digite o número correspondente ao seu nome:\n" + p.get("lista", ""))
		},
		MultipleMatches: func(p Params) []string {
			return one(fmt.Sprintf("Encontrei vários resultados:\n%s\n\nDigite o número correspondente ao seu nome:", p.get("lista", "")))
		},
		OptionTechnical: func(p Params) []string {
			return one("🔧 " + namePrefix(p) + "você selecionou: Reportar problema técnico\n\n" +
				"Por favor, descreva com detalhes:\n" +
				"• Qual sistema/módulo está com problema?\n" +
				"• O que você estava fazendo quando aconteceu?\n" +
				"• Há quanto tempo isso ocorre?\n\n" +
				"Descreva o máximo de detalhes possível para podermos ajudá-lo melhor.")
		},
		OptionOrder: func(p Params) []string {
			return one("📦 " + namePrefix(p) + "você selecionou: Consultar status de pedido/serviço\n\n" +
				"Para consultar o status, preciso de algumas informações:\n" +
				"• Número do pedido ou protocolo\n" +
				"• CPF/CNPJ associado\n" +
				"• Data aproximada do pedido\n\n" +
				"Se não tiver essas informações à mão, posso transferi-lo para um atendente.")
		},
		OptionProduct: func(p Params) []string {
			return one("💼 " + namePrefix(p) + "você selecionou: Dúvidas sobre produtos/serviços\n\n" +
				"Sobre qual produto/serviço você gostaria de informações?\n" +
				"• Nome do produto/serviço\n" +
				"• Código (se souber)\n" +
				"• Sua dúvida específica\n\n" +
				"Tenho acesso ao catálogo completo e posso ajudar com especificações técnicas.")
		},
		OptionOther: func(p Params) []string {
			return one("❓ " + namePrefix(p) + "você selecionou: Outras questões\n\n" +
				"Por favor, descreva sua dúvida ou solicitação:\n" +
				"• Qual é o assunto?\n" +
				"• É urgente?\n" +
				"• Já tentou resolver de outra forma?\n\n" +
				"Tentarei ajudar no que for possível ou transferirei para o setor correto.")
		},
		AccountData: func(p Params) []string {
			return one("👤 " + namePrefix(p) + "Seus Dados Cadastrais\n\n" +
				"• Nome: " + p.get("dados_nome", NotProvided) + "\n" +
				"• Email: " + p.get("email", NotProvided) + "\n" +
				"• Telefone: " + p.get("telefone", NotProvided) + "\n" +
				"• Login: " + p.get("login", NotProvided) + "\n" +
				"• Cadastro: " + p.get("cadastro", NotProvided))
		},
		NotIdentified: func(p Params) []string {
			return one("👤 " + namePrefix(p) + "não encontrei um cadastro vinculado a esta conversa.\n" +
				"Para consultar seus dados, fale com um atendente (opção 5).")
		},
		Handoff: func(p Params) []string {
			return one("👨‍💼 " + namePrefix(p) + "você selecionou: Falar com atendente humano\n\n" +
				"Estou transferindo sua conversa para um de nossos especialistas.\n" +
				"Por favor, aguarde alguns instantes...\n\n" +
				"Enquanto isso, você pode descrever brevemente o motivo do contato.")
		},
		OutsideHours: func(p Params) []string {
			return one(fmt.Sprintf("Atendimento humano disponível das %sh às %sh, de segunda a sexta. "+
				"Sua solicitação fica registrada e um atendente responderá assim que possível.",
				p.get("inicio", "8"), p.get("fim", "14")))
		},
		QueuePosition: func(p Params) []string {
			return one(fmt.Sprintf("🔄 Sua posição na fila: #%s\nTempo estimado de espera: %s",
				p.get("posicao", "1"), p.get("espera", "Indeterminado")))
		},
		AgentAssigned: func(p Params) []string {
			return one(fmt.Sprintf("✅ %s vai continuar seu atendimento a partir de agora.", p.get("atendente", "Um atendente")))
		},
		AwaitingAgent: func(Params) []string {
			return one("⏳ Sua conversa já foi encaminhada a um atendente. Aguarde, por favor, você será atendido em breve.")
		},
		Analysing: func(Params) []string {
			return []string{
				"Analisando sua solicitação... 🔍",
				"Deixe-me verificar isso para você... ⏳",
				"Processando sua requisição...",
				"Um momento, estou consultando as informações... 📊",
			}
		},
		TechnicalResolution: func(Params) []string {
			return []string{
				"🔧 Solução encontrada: Tente reiniciar o aplicativo e limpar o cache. Isso resolve a maioria dos casos!",
				"🛠️ Procedimento: Acesse Configurações > Limpar Cache > Confirmar. Isso deve resolver o problema.",
				"💡 Dica: Esse erro é conhecido. Faça logout, aguarde 2 minutos e faça login novamente.",
			}
		},
		OrderInfo: func(p Params) []string {
			return one(fmt.Sprintf("📦 Pedido #%s\n", p.get("numero", "0000")) +
				"• Status: Em processamento\n" +
				"• Previsão: 2-3 dias úteis\n" +
				"• Última atualização: Hoje")
		},
		ProductInfo: func(Params) []string {
			return one("📝 Informações do Produto:\n" +
				"• Garantia: 12 meses\n" +
				"• Especificações completas\n" +
				"• Suporte técnico incluso")
		},
		OtherAck: func(Params) []string {
			return one("Recebi sua solicitação. Em breve nossa equipe entrará em contato.")
		},
		TimeoutWarning: func(Params) []string {
			return one("⏰ Aviso de Inatividade\n" +
				"Você está há algum tempo sem responder.\n" +
				"Sua sessão será encerrada em breve.")
		},
		TimeoutNotice: func(Params) []string {
			return one("⏰ Sessão Encerrada\n" +
				"Sua sessão foi finalizada por inatividade.\n" +
				"Para novo atendimento, reconecte-se.")
		},
		SessionExpired: func(Params) []string {
			return one("Sua conversa expirou. Por favor, inicie uma nova conversa.")
		},
		ConversationEnded: func(Params) []string {
			return one("Esta conversa já foi encerrada. Para novo atendimento, inicie uma nova conversa.")
		},
		ClosingResolved: func(Params) []string {
			return one("Obrigado por usar nosso chat! Até a próxima! 😊")
		},
		ClosingUnresolved: func(Params) []string {
			return one("Sentimos muito por não conseguir resolver. Um atendente entrará em contato.")
		},
		InvalidMessage: func(p Params) []string {
			return one(fmt.Sprintf("Mensagem inválida. Envie um texto de até %s caracteres.", p.get("limite", "1000")))
		},
		GenericError: func(Params) []string {
			return one("Desculpe, estou com uma dificuldade técnica no momento. Pode tentar novamente em alguns instantes?")
		},
	}
}
