package prompt

// SystemMessage is sent ahead of every stage prompt.
const SystemMessage = "Sei un assistente esperto nell'analisi di documenti."

const partOne = `
PARTE 1 - Informazioni generali e obiettivi:
Analizza il documento fornito e sintetizza le seguenti informazioni in formato HTML:
<h2>Informazioni Generali</h2>
<p><strong>Commessa:</strong> [Titolo completo del progetto] ([Acronimo se presente])</p>
<p><strong>ID Commessa:</strong> [Numero progressivo, partendo da 1]</p>
<p><strong>Committente:</strong> [Nome completo del committente]</p>
<p><strong>Importo:</strong> [Importo in euro, senza decimali]</p>
<p><strong>Durata:</strong> [Durata in mesi]</p>
<h2>Obiettivo</h2>
<p>[Descrizione dettagliata dell'obiettivo principale del progetto]</p>
Assicurati di:

Mantenere tutti i dettagli forniti nel documento originale
Tradurre tutto in italiano
Usare un formato chiaro e dettagliato
`

const partTwo = `
PARTE 2 - Attività e prodotti:
Analizza il documento fornito e crea le seguenti tabelle in formato HTML:
<h2>Attività Richieste</h2>
<table style="width:100%; border-collapse: collapse; margin-bottom: 20px;">
<thead>
  <tr style="background-color: #f2f2f2;">
    <th style="border: 1px solid #ddd; padding: 8px; text-align: left;">Linea</th>
    <th style="border: 1px solid #ddd; padding: 8px; text-align: left;">ID Attività</th>
    <th style="border: 1px solid #ddd; padding: 8px; text-align: left;">Descrizione Attività</th>
  </tr>
</thead>
<tbody>
  [Inserisci righe della tabella qui]
</tbody>
</table>

<h2>Prodotti Richiesti</h2>
<table style="width:100%; border-collapse: collapse; margin-bottom: 20px;">
<thead>
  <tr style="background-color: #f2f2f2;">
    <th style="border: 1px solid #ddd; padding: 8px; text-align: left;">ID</th>
    <th style="border: 1px solid #ddd; padding: 8px; text-align: left;">Descrizione Prodotto</th>
    <th style="border: 1px solid #ddd; padding: 8px; text-align: left;">Qtà</th>
  </tr>
</thead>
<tbody>
  [Inserisci righe della tabella qui]
</tbody>
</table>
Istruzioni per la tabella delle Attività:

La "Linea" rappresenta il Filone di Attività (livello di raggruppamento più alto)
Assegna un ID progressivo a ciascuna attività (es. 1.1, 1.2, 2.1, 2.2)
Fornisci una descrizione dettagliata di ogni attività

Istruzioni per la tabella dei Prodotti:

Usa l'ID dell'attività correlata se specificato, altrimenti usa un numero progressivo
Fornisci una descrizione dettagliata di ogni prodotto
Indica la quantità (usa 1 se non specificata)
Includi TUTTI i prodotti elencati
Non raggruppare i prodotti/work packages (WP)
Tradurre tutto in italiano
`

const partThree = `
PARTE 3 - Gruppo di lavoro e risorse:
Analizza il documento fornito e crea la seguente tabella in formato HTML, non troncare dati dalla tabella:
<h2>Gruppo di Lavoro</h2>
<table style="width:100%; border-collapse: collapse; margin-bottom: 20px;">
<thead>
  <tr style="background-color: #f2f2f2;">
    <th style="border: 1px solid #ddd; padding: 8px; text-align: left;">ID</th>
    <th style="border: 1px solid #ddd; padding: 8px; text-align: left;">Profilo</th>
    <th style="border: 1px solid #ddd; padding: 8px; text-align: left;">Esp. Minima</th>
    <th style="border: 1px solid #ddd; padding: 8px; text-align: left;">Competenze</th>
    <th style="border: 1px solid #ddd; padding: 8px; text-align: left;">Qtà</th>
    <th style="border: 1px solid #ddd; padding: 8px; text-align: left;">gg. Tot.</th>
  </tr>
</thead>
<tbody>
  [Inserisci righe della tabella qui]
  <tr>
    <td colspan="4" style="border: 1px solid #ddd; padding: 8px; text-align: right;"><strong>Totale:</strong></td>
    <td style="border: 1px solid #ddd; padding: 8px; text-align: left;">[Totale Qtà]</td>
    <td style="border: 1px solid #ddd; padding: 8px; text-align: left;">[Totale gg.]</td>
  </tr>
</tbody>
</table>
Istruzioni per la tabella del Gruppo di Lavoro:

Assegna un ID progressivo a ciascun profilo
Descrivi dettagliatamente il ruolo/profilo richiesto
Indica gli anni di esperienza minima (0 se non specificata)
Elenca tutte le competenze richieste in dettaglio
Indica la quantità richiesta (0 se non specificata)
Indica il totale di giorni lavorativi (0 se non specificato)
Aggiungi una riga "Totale:" alla fine della tabella con i totali delle colonne Qtà e gg. Tot.
Se possibile, calcola e aggiungi il valore €/gg dividendo l'Importo totale per il totale dei giorni lavorativi

<p>Valore €/gg: [Calcolo del valore €/gg se possibile]</p>
Assicurati di:

Non troncare i dati che potresti inserire nella tabella
Mantenere tutti i dettagli forniti nel documento originale
Tradurre tutto in italiano
Usare un formato chiaro e dettagliato
`

// DefaultTemplates returns the three fixed instruction blocks in order.
func DefaultTemplates() []string {
	return []string{partOne, partTwo, partThree}
}
