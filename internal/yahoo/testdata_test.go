package yahoo

const summaryJSON = `{
  "quoteSummary": {
    "result": [{
      "price": {
        "regularMarketPrice": {"raw": 150.0, "fmt": "150.00"},
        "currency": "USD",
        "shortName": "Arch Capital Group Ltd."
      },
      "financialData": {
        "currentPrice": {"raw": 150.0, "fmt": "150.00"},
        "totalRevenue": {"raw": 200000000, "fmt": "200M"},
        "ebitda": {},
        "totalDebt": {"raw": 100000000, "fmt": "100M"},
        "totalCash": {"raw": 20000000, "fmt": "20M"}
      },
      "defaultKeyStatistics": {
        "enterpriseValue": {"raw": 1000000000, "fmt": "1B"},
        "netIncomeToCommon": {"raw": 50000000, "fmt": "50M"},
        "trailingEps": {"raw": 6.0, "fmt": "6.00"}
      },
      "incomeStatementHistory": {
        "incomeStatementHistory": [
          {"endDate": {"raw": 1703980800, "fmt": "2023-12-31"}, "totalRevenue": {"raw": 200000000}, "netIncome": {"raw": 50000000}},
          {"endDate": {"raw": 1672444800, "fmt": "2022-12-31"}, "totalRevenue": {"raw": 180000000}, "netIncome": {"raw": 40000000}}
        ]
      }
    }],
    "error": null
  }
}`

const keyStatisticsHTML = `<html><body>
<section>
  <table>
    <tr><th></th><th>Current</th><th>3/31/2024</th></tr>
    <tr><td>Market Cap</td><td>1.10B</td><td>1.00B</td></tr>
    <tr><td>Enterprise Value</td><td>1.20B</td><td>1.10B</td></tr>
    <tr><td>Enterprise Value/Revenue</td><td>6.00</td><td>5.50</td></tr>
    <tr><td>Enterprise Value/EBITDA</td><td>20.00</td><td>18.00</td></tr>
  </table>
  <table>
    <tr><td>Revenue (ttm)</td><td>200M</td></tr>
    <tr><td>EBITDA </td><td>60M</td></tr>
    <tr><td>Net Income Avi to Common (ttm)</td><td>50M</td></tr>
    <tr><td>Diluted EPS (ttm)</td><td>6.00</td></tr>
    <tr><td>Total Cash (mrq)</td><td>20M</td></tr>
    <tr><td>Total Debt (mrq)</td><td>--</td></tr>
    <tr><td>Profit Margin</td><td>25.00%</td></tr>
  </table>
</section>
</body></html>`
