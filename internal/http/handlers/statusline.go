package handlers

import "mediagen/internal/domain"

// statusLine renders the short human-readable line the dashboard shows next
// to a job. A timed_out job is deliberately worded as "still processing",
// not as a failure: the remote task may yet finish and a manual refresh can
// pick the result up.
var statusLines = map[string]map[domain.Status]string{
	"en": {
		domain.StatusPending:    "Waiting for the provider to start",
		domain.StatusProcessing: "Generating your media",
		domain.StatusSucceeded:  "Generation complete",
		domain.StatusFailed:     "Generation failed",
		domain.StatusTimedOut:   "Taking longer than expected, check back soon",
		domain.StatusCancelled:  "Generation cancelled",
	},
	"es": {
		domain.StatusPending:    "Esperando a que el proveedor comience",
		domain.StatusProcessing: "Generando tu contenido",
		domain.StatusSucceeded:  "Generación completada",
		domain.StatusFailed:     "La generación falló",
		domain.StatusTimedOut:   "Está tardando más de lo esperado, vuelve pronto",
		domain.StatusCancelled:  "Generación cancelada",
	},
	"pt": {
		domain.StatusPending:    "Aguardando o provedor iniciar",
		domain.StatusProcessing: "Gerando sua mídia",
		domain.StatusSucceeded:  "Geração concluída",
		domain.StatusFailed:     "A geração falhou",
		domain.StatusTimedOut:   "Demorando mais que o esperado, volte em breve",
		domain.StatusCancelled:  "Geração cancelada",
	},
	"ja": {
		domain.StatusPending:    "プロバイダーの開始を待っています",
		domain.StatusProcessing: "メディアを生成しています",
		domain.StatusSucceeded:  "生成が完了しました",
		domain.StatusFailed:     "生成に失敗しました",
		domain.StatusTimedOut:   "予想より時間がかかっています。後でご確認ください",
		domain.StatusCancelled:  "生成をキャンセルしました",
	},
	"id": {
		domain.StatusPending:    "Menunggu penyedia memulai",
		domain.StatusProcessing: "Sedang membuat media Anda",
		domain.StatusSucceeded:  "Pembuatan selesai",
		domain.StatusFailed:     "Pembuatan gagal",
		domain.StatusTimedOut:   "Memakan waktu lebih lama dari perkiraan, cek kembali nanti",
		domain.StatusCancelled:  "Pembuatan dibatalkan",
	},
}

func statusLine(locale string, status domain.Status) string {
	lines, ok := statusLines[locale]
	if !ok {
		lines = statusLines["en"]
	}
	if line, ok := lines[status]; ok {
		return line
	}
	return statusLines["en"][status]
}
