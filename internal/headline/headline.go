// Package headline builds short, deterministic hooks for offer posts when no
// AI model is configured.
package headline

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"

	"github.com/pauljones0/meli-offers-bot/internal/models"
)

const defaultCategory = "default"

var wordSets = map[string][]string{
	"smartphone":    {"ASTRONÔMICO 📱", "MISSÃO LUNAR 🚀", "FLAGSHIP 💥"},
	"tv":            {"CINEMÃO 📺", "TELÃO 🎬", "PIXELS 🔥"},
	"notebook":      {"ESTUDOS TURBO 💻", "TRABALHO 🧠", "NOTE BRABO ⚙️"},
	"audio":         {"GRAVEZERA 🎧", "SOM CRISTAL 🎵", "OUVIDO FELIZ 🔊"},
	"gaming":        {"FPS NAS ALTURAS 🎮", "GG EASY 🏆", "LATÊNCIA ZERO ⚡"},
	"casa":          {"CASA CHIQUE 🏠", "UTILIDADE TOP ✨", "LAR UPGRADE 🔧"},
	"cozinha":       {"COZINHA PRO 🍳", "RECEITA VAPT-VUPT 🍝", "SUCÃO GELADO 🧊"},
	"fitness":       {"METER O SHAPE 🏋️", "CARDIO 💪", "PROJETO VERÃO ☀️"},
	"auto":          {"CARRO EQUIPADO 🚗", "GARAGEM TURBO 🛠️", "RODAS FELIZES 🚘"},
	"pet":           {"PET FELIZ 🐾", "MIAU + AU-AU 💚", "PET PREMIUM 🐶"},
	"perfumaria":    {"CHEIRO DE RICO 💎", "AROMA FINO 🌹", "ASSINATURA ✨"},
	defaultCategory: {"ACHADO RARO 🔥", "PEGA ESSA 🎯", "PREÇO QUEBRADO 💣"},
}

var (
	urgentHigh = []string{"CORRE! ⚡", "RELÂMPAGO ⚡", "ÚLTIMAS UNIDADES ⌛"}
	urgentMid  = []string{"ACHADO 🔥", "TÁ VOANDO 💨", "PEGA AGORA ✅"}
	urgentLow  = []string{"PREÇO BAIXOU 💥", "BOA DEMAIS 💙", "APROVEITA 💫"}
)

type categoryPattern struct {
	name string
	re   *regexp.Regexp
}

// Checked in order; the first match wins.
var categories = []categoryPattern{
	{"smartphone", keywords(`galaxy|iphone|redmi|moto|xiaomi|realme|smartphone|celular`)},
	{"tv", keywords(`tv|smart\s*tv|oled|qled|uhd|4k|55['’"]|65['’"]|55 pol|65 pol`)},
	{"notebook", keywords(`notebook|laptop|macbook`)},
	{"audio", keywords(`fone|headset|earbud|airpods|soundbar|caixa de som`)},
	{"gaming", keywords(`ps5|xbox|nintendo|rtx|gpu|placa de vídeo|gamer|gaming`)},
	{"cozinha", keywords(`fritadeira|air\s*fryer|liquidificador|batedeira|caf[eé]|micro-ondas|forno`)},
	{"fitness", keywords(`whey|creatina|bicicleta|esteira|halter|suplemento|gym`)},
	{"auto", keywords(`pneu|som automotivo|suporte veicular|carregador veicular|automotivo`)},
	{"pet", keywords(`ração|petisco|arranhador|antipulga|areia|pet`)},
	{"perfumaria", keywords(`perfume|eau de|parfum|colônia|toilette`)},
	{"casa", keywords(`lençol|edredom|travesseiro|luminária|organizador|ferramenta|casa`)},
}

// keywords matches any alternative as a whole word. Go's \b only knows ASCII
// letters, so the boundaries are spelled out to cover accented ones.
func keywords(alternatives string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(?:` + alternatives + `)(?:$|[^\p{L}\p{N}_])`)
}

// Category returns the product category detected from the title.
func Category(title string) string {
	for _, c := range categories {
		if c.re.MatchString(title) {
			return c.name
		}
	}
	return defaultCategory
}

// Generate returns "<urgency> <flair>" for an offer. The same inputs always
// produce the same headline.
func Generate(title string, priceFrom, price *float64) string {
	cat := Category(title)
	discount := models.Offer{Price: price, PriceFrom: priceFrom}.Discount()

	urgent := pick(urgencyPool(discount), fmt.Sprintf("urgent-%d-%s", discount, formatSeed(price)))
	flair := pick(wordSets[cat], fmt.Sprintf("%s-%s-%s-%d-%s", title, formatSeed(priceFrom), formatSeed(price), discount, cat))

	return urgent + " " + flair
}

func urgencyPool(discount int) []string {
	switch {
	case discount >= 40:
		return urgentHigh
	case discount >= 25:
		return urgentMid
	default:
		return urgentLow
	}
}

func pick(list []string, seed string) string {
	sum := md5.Sum([]byte(seed))
	return list[binary.BigEndian.Uint64(sum[:8])%uint64(len(list))]
}

func formatSeed(v *float64) string {
	if v == nil {
		return "null"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
